package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/mailchimp"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
)

// syncUnsubscribes pulls every unsubscribed audience member and flips the
// matching store record's email consent to 0. Consent only ever moves 1 -> 0
// here; a member with no matching store row, or one already opted out, is
// counted and skipped. Re-running the same list is a no-op: an email owned
// by an already-downgraded client never leaks through to a lead sharing it.
func (e *Engine) syncUnsubscribes(ctx context.Context, runID string) error {
	members, err := e.sink.ListMembers(ctx, mailchimp.StatusUnsubscribed)
	if err != nil {
		e.appendLog(ctx, &model.SyncLog{
			RunID:        runID,
			EntityType:   model.EntitySyncRun,
			Action:       model.ActionUnsubscribe,
			Status:       model.StatusError,
			ErrorDetails: err.Error(),
		})
		return fmt.Errorf("list unsubscribed members: %w", err)
	}

	logger.FromContext(ctx).Info("Fetched unsubscribed members",
		zap.Int("count", len(members)))

	updated, skipped := 0, 0
	for _, m := range members {
		entityType, changed, err := e.downgradeConsent(ctx, m.EmailAddress)
		if err != nil {
			observer.IncUnsubscribe("error")
			e.appendLog(ctx, &model.SyncLog{
				RunID:        runID,
				EntityType:   model.EntitySyncRun,
				Email:        m.EmailAddress,
				Action:       model.ActionUnsubscribe,
				Status:       model.StatusError,
				ErrorDetails: err.Error(),
			})
			continue
		}
		if entityType == "" {
			skipped++
			observer.IncUnsubscribe("no_match")
			continue
		}
		if !changed {
			skipped++
			observer.IncUnsubscribe("already_unsubscribed")
			continue
		}

		updated++
		observer.IncUnsubscribe("updated")
		e.appendLog(ctx, &model.SyncLog{
			RunID:      runID,
			EntityType: entityType,
			Email:      m.EmailAddress,
			Action:     model.ActionUnsubscribe,
			Status:     model.StatusSuccess,
			Message:    fmt.Sprintf("Updated %s opt_in_email to 0", entityType),
		})
	}

	logger.FromContext(ctx).Info("Unsubscribe pass finished",
		zap.Int("updated", updated),
		zap.Int("skipped", skipped))
	return nil
}

// downgradeConsent tries clients first, then leads, matching the email
// case-insensitively. An email present on a client claims the unsubscribe
// even when that client is already opted out, so the lookup never falls
// through to a lead sharing the address on a later run. Returns the owning
// entity type ("" when nothing holds the email) and whether a row changed.
func (e *Engine) downgradeConsent(ctx context.Context, email string) (string, bool, error) {
	matched, changed, err := e.clients.DowngradeEmailConsent(ctx, email)
	if err != nil {
		return "", false, err
	}
	if matched > 0 {
		return model.EntityClient, changed > 0, nil
	}

	matched, changed, err = e.leads.DowngradeEmailConsent(ctx, email)
	if err != nil {
		return "", false, err
	}
	if matched > 0 {
		return model.EntityLead, changed > 0, nil
	}
	return "", false, nil
}
