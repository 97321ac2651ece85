package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/mailchimp"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/transform"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// pushEpoch stands in for "never pushed" when no push terminal marker
// exists yet.
var pushEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// memberRef ties a submitted audience member back to its store row so
// per-record log entries and linkage updates can be written after a batch
// succeeds.
type memberRef struct {
	entityType string
	dbID       int64
	pabauID    int64
	email      string
}

// pushToMailchimp is the sink push pass. It is gated entirely on the audit
// log: it runs only when a pull terminal marker is newer than the last push
// terminal marker, so the decision survives process restarts. Once the
// candidates are in hand a push terminal marker is always written, whatever
// the batch outcomes; a failed candidate query writes no marker, leaving the
// pull window to be retried next cycle instead of silently skipped.
func (e *Engine) pushToMailchimp(ctx context.Context, runID string) error {
	lastPull, err := e.logs.LastCompleted(ctx, model.ActionClientsCompleted, model.ActionLeadsCompleted)
	if err != nil {
		return fmt.Errorf("read last pull marker: %w", err)
	}
	if lastPull == nil {
		logger.FromContext(ctx).Info("No completed pull found, nothing to push")
		return nil
	}

	lastPush, err := e.logs.LastCompleted(ctx, model.ActionPushCompleted)
	if err != nil {
		return fmt.Errorf("read last push marker: %w", err)
	}
	if lastPush == nil {
		lastPush = &pushEpoch
	}

	if !lastPull.After(*lastPush) {
		logger.FromContext(ctx).Info("No new pull since last push, skipping",
			zap.Time("last_pull", *lastPull),
			zap.Time("last_push", *lastPush))
		return nil
	}

	logger.FromContext(ctx).Info("Pushing records synced since last push",
		zap.Time("since", *lastPush))

	members, refs, dropped, err := e.collectMembers(ctx, runID, *lastPush)
	if err != nil {
		// No marker: last_push_complete must not advance past records this
		// pass never saw.
		return err
	}

	// Candidates collected: the terminal marker is owed from here on, even
	// if the batches below fail.
	pushed := 0
	var passErr error
	defer func() {
		e.appendLog(ctx, &model.SyncLog{
			RunID:      runID,
			EntityType: model.EntitySyncRun,
			Action:     model.ActionPushCompleted,
			Status:     model.StatusSuccess,
			Message:    fmt.Sprintf("Pushed %d members, dropped %d", pushed, dropped),
		})
	}()

	if len(members) == 0 {
		logger.FromContext(ctx).Info("No eligible members to push")
		return nil
	}

	pushed, passErr = e.submitBatches(ctx, runID, members, refs)
	return passErr
}

// collectMembers queries both candidate sets, dedupes each by email, and
// maps them to audience members. Out-of-range system ids drop the record.
func (e *Engine) collectMembers(ctx context.Context, runID string, since time.Time) ([]mailchimp.Member, []memberRef, int, error) {
	clientCands, err := e.logs.ClientPushCandidates(ctx, since)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("query client push candidates: %w", err)
	}
	leadCands, err := e.logs.LeadPushCandidates(ctx, since)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("query lead push candidates: %w", err)
	}

	clientCands = transform.DedupeCandidates(clientCands)
	leadCands = transform.DedupeCandidates(leadCands)

	logger.FromContext(ctx).Info("Collected push candidates",
		zap.Int("clients", len(clientCands)),
		zap.Int("leads", len(leadCands)))

	var (
		members []mailchimp.Member
		refs    []memberRef
		dropped int
	)

	appendSet := func(cands []model.PushCandidate, tag, entityType string) {
		for i := range cands {
			c := &cands[i]
			m, ok := transform.MemberFromCandidate(c, tag)
			if !ok {
				dropped++
				observer.AddPushMembers(entityType, "dropped", 1)
				e.appendLog(ctx, &model.SyncLog{
					RunID:      runID,
					EntityType: entityType,
					EntityID:   &c.DBID,
					PabauID:    &c.PabauID,
					Email:      c.Email,
					Action:     model.ActionPush,
					Status:     model.StatusSkipped,
					Message:    "system id outside signed 32-bit range",
				})
				continue
			}
			members = append(members, *m)
			refs = append(refs, memberRef{
				entityType: entityType,
				dbID:       c.DBID,
				pabauID:    c.PabauID,
				email:      c.Email,
			})
		}
	}

	appendSet(clientCands, transform.TagClients, model.EntityClient)
	appendSet(leadCands, transform.TagLeads, model.EntityLead)
	return members, refs, dropped, nil
}

// submitBatches sends members in fixed-size batches with a fixed pause
// between them to stay under the audience API's burst ceiling. A failed
// batch is recorded and skipped; later batches still go out.
func (e *Engine) submitBatches(ctx context.Context, runID string, members []mailchimp.Member, refs []memberRef) (int, error) {
	pushed := 0
	var errs []error

	clientIDs := make([]int64, 0, len(refs))
	leadIDs := make([]int64, 0, len(refs))

	for start := 0; start < len(members); start += e.pushBatchSize {
		end := start + e.pushBatchSize
		if end > len(members) {
			end = len(members)
		}
		batch := members[start:end]

		result, err := e.sink.BatchSubscribe(ctx, batch)
		observer.IncPushBatch(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("batch %d-%d: %w", start, end, err))
			e.appendLog(ctx, &model.SyncLog{
				RunID:        runID,
				EntityType:   model.EntitySyncRun,
				Action:       model.ActionPush,
				Status:       model.StatusError,
				Message:      fmt.Sprintf("Batch of %d failed", len(batch)),
				ErrorDetails: err.Error(),
			})
		} else {
			logger.FromContext(ctx).Info("Batch submitted",
				zap.Int("size", len(batch)),
				zap.Int("created", result.TotalCreated),
				zap.Int("updated", result.TotalUpdated),
				zap.Int("errors", result.ErrorCount))

			for _, ref := range refs[start:end] {
				pushed++
				observer.AddPushMembers(ref.entityType, "pushed", 1)
				switch ref.entityType {
				case model.EntityClient:
					clientIDs = append(clientIDs, ref.dbID)
				case model.EntityLead:
					leadIDs = append(leadIDs, ref.dbID)
				}
				dbID, pabauID := ref.dbID, ref.pabauID
				e.appendLog(ctx, &model.SyncLog{
					RunID:      runID,
					EntityType: ref.entityType,
					EntityID:   &dbID,
					PabauID:    &pabauID,
					Email:      ref.email,
					Action:     model.ActionPush,
					Status:     model.StatusSuccess,
					Message:    "Pushed to audience",
				})
			}
		}

		if end < len(members) {
			select {
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
				return pushed, errors.Join(errs...)
			case <-time.After(e.pushBatchPause):
			}
		}
	}

	pushedAt := utils.Now()
	if err := e.clients.MarkPushed(ctx, clientIDs, mailchimp.StatusSubscribed, []string{transform.TagClients}, pushedAt); err != nil {
		errs = append(errs, err)
	}
	if err := e.leads.MarkPushed(ctx, leadIDs, mailchimp.StatusSubscribed, []string{transform.TagLeads}, pushedAt); err != nil {
		errs = append(errs, err)
	}

	return pushed, errors.Join(errs...)
}
