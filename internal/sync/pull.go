package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/transform"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/validator"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// pullFromPabau runs the source pull for clients then leads, strictly in
// that order. Each sub-pull is isolated: a client pull failure does not stop
// the lead pull.
func (e *Engine) pullFromPabau(ctx context.Context, runID string) error {
	return errors.Join(
		e.pullClients(ctx, runID),
		e.pullLeads(ctx, runID),
	)
}

// pullClients fetches the entire client collection page by page. The CRM's
// server-side filters are unreliable, so filtering happens here: records at
// or before the cursor are skipped, the rest are upserted along with their
// nested appointments. The terminal completion marker is written only after
// every page has been fetched; an aborted fetch leaves no marker so the push
// pass will not treat the partial pull as progress.
func (e *Engine) pullClients(ctx context.Context, runID string) error {
	cutoff, err := e.cursors.Get(ctx, model.EntityClient)
	if err != nil {
		return fmt.Errorf("read client cursor: %w", err)
	}
	logCursor(ctx, model.EntityClient, cutoff)

	syncTime := utils.Now()
	synced, apptCount, skippedOld, skippedNoEmail, errCount, totalFetched := 0, 0, 0, 0, 0, 0

	for page := 1; ; page++ {
		payloads, err := e.source.ListClients(ctx, page)
		if err != nil {
			return fmt.Errorf("fetch clients page %d: %w", page, err)
		}
		if len(payloads) == 0 {
			break
		}
		observer.IncPullPage(model.EntityClient)
		totalFetched += len(payloads)

		for i := range payloads {
			p := &payloads[i]
			client := transform.ClientFromPayload(p, syncTime)

			if err := validator.Validate(client); err != nil {
				errCount++
				observer.IncPullRecord(model.EntityClient, "error")
				e.appendLog(ctx, &model.SyncLog{
					RunID:        runID,
					EntityType:   model.EntityClient,
					Email:        client.Email,
					Action:       model.ActionSyncClient,
					Status:       model.StatusError,
					Message:      "malformed record",
					ErrorDetails: err.Error(),
				})
				continue
			}
			if client.Email == "" {
				skippedNoEmail++
				observer.IncPullRecord(model.EntityClient, "skipped_no_email")
				e.appendLog(ctx, &model.SyncLog{
					RunID:      runID,
					EntityType: model.EntityClient,
					PabauID:    &client.PabauID,
					Action:     model.ActionSyncClient,
					Status:     model.StatusSkipped,
					Message:    "missing email",
				})
				continue
			}
			if skipBeforeCutoff(cutoff, client.CreatedDate) {
				skippedOld++
				observer.IncPullRecord(model.EntityClient, "skipped_old")
				continue
			}

			id, err := e.clients.Upsert(ctx, client)
			if err != nil {
				errCount++
				observer.IncPullRecord(model.EntityClient, "error")
				e.appendLog(ctx, &model.SyncLog{
					RunID:        runID,
					EntityType:   model.EntityClient,
					PabauID:      &client.PabauID,
					Email:        client.Email,
					Action:       model.ActionSyncClient,
					Status:       model.StatusError,
					ErrorDetails: err.Error(),
				})
				continue
			}

			appointments := transform.AppointmentsFromPayload(client.PabauID, p.Appointments, syncTime)
			if err := e.appts.BulkUpsert(ctx, appointments); err != nil {
				logger.FromContext(ctx).Warn("Failed to upsert appointments",
					zap.Int64("client_pabau_id", client.PabauID),
					zap.Int("count", len(appointments)),
					zap.Error(err))
			} else {
				apptCount += len(appointments)
			}

			synced++
			observer.IncPullRecord(model.EntityClient, "synced")
			e.appendLog(ctx, &model.SyncLog{
				RunID:      runID,
				EntityType: model.EntityClient,
				EntityID:   &id,
				PabauID:    &client.PabauID,
				Email:      client.Email,
				Action:     model.ActionSyncClient,
				Status:     model.StatusSuccess,
				Message:    fmt.Sprintf("Client and %d appointments synced", len(appointments)),
			})

			if client.CreatedDate != nil {
				if err := e.cursors.Advance(ctx, model.EntityClient, *client.CreatedDate); err != nil {
					logger.FromContext(ctx).Warn("Failed to advance client cursor", zap.Error(err))
				}
			}
		}

		if page%50 == 0 {
			logger.FromContext(ctx).Info("Client pull progress",
				zap.Int("page", page),
				zap.Int("fetched", totalFetched),
				zap.Int("synced", synced))
		}

		// Short page ends pagination; reported totals are never trusted.
		if len(payloads) < e.source.PageSize() {
			break
		}
	}

	logger.FromContext(ctx).Info("Client pull finished",
		zap.Int("fetched", totalFetched),
		zap.Int("synced", synced),
		zap.Int("appointments", apptCount),
		zap.Int("skipped_old", skippedOld),
		zap.Int("skipped_no_email", skippedNoEmail),
		zap.Int("errors", errCount))

	// Terminal marker, written even when zero new rows were ingested.
	e.appendLog(ctx, &model.SyncLog{
		RunID:      runID,
		EntityType: model.EntitySyncRun,
		Action:     model.ActionClientsCompleted,
		Status:     model.StatusSuccess,
		Message:    fmt.Sprintf("Synced %d clients, %d appointments from %d fetched", synced, apptCount, totalFetched),
	})
	return nil
}

// pullLeads mirrors pullClients for the leads collection, without the
// appointment handling.
func (e *Engine) pullLeads(ctx context.Context, runID string) error {
	cutoff, err := e.cursors.Get(ctx, model.EntityLead)
	if err != nil {
		return fmt.Errorf("read lead cursor: %w", err)
	}
	logCursor(ctx, model.EntityLead, cutoff)

	syncTime := utils.Now()
	synced, skippedOld, skippedNoEmail, errCount, totalFetched := 0, 0, 0, 0, 0

	for page := 1; ; page++ {
		payloads, err := e.source.ListLeads(ctx, page)
		if err != nil {
			return fmt.Errorf("fetch leads page %d: %w", page, err)
		}
		if len(payloads) == 0 {
			break
		}
		observer.IncPullPage(model.EntityLead)
		totalFetched += len(payloads)

		for i := range payloads {
			p := &payloads[i]
			lead := transform.LeadFromPayload(p, syncTime)

			if err := validator.Validate(lead); err != nil {
				errCount++
				observer.IncPullRecord(model.EntityLead, "error")
				e.appendLog(ctx, &model.SyncLog{
					RunID:        runID,
					EntityType:   model.EntityLead,
					Email:        lead.Email,
					Action:       model.ActionSyncLead,
					Status:       model.StatusError,
					Message:      "malformed record",
					ErrorDetails: err.Error(),
				})
				continue
			}
			if lead.Email == "" {
				skippedNoEmail++
				observer.IncPullRecord(model.EntityLead, "skipped_no_email")
				e.appendLog(ctx, &model.SyncLog{
					RunID:      runID,
					EntityType: model.EntityLead,
					PabauID:    &lead.PabauID,
					Action:     model.ActionSyncLead,
					Status:     model.StatusSkipped,
					Message:    "missing email",
				})
				continue
			}
			if skipBeforeCutoff(cutoff, lead.CreatedDate) {
				skippedOld++
				observer.IncPullRecord(model.EntityLead, "skipped_old")
				continue
			}

			id, err := e.leads.Upsert(ctx, lead)
			if err != nil {
				errCount++
				observer.IncPullRecord(model.EntityLead, "error")
				e.appendLog(ctx, &model.SyncLog{
					RunID:        runID,
					EntityType:   model.EntityLead,
					PabauID:      &lead.PabauID,
					Email:        lead.Email,
					Action:       model.ActionSyncLead,
					Status:       model.StatusError,
					ErrorDetails: err.Error(),
				})
				continue
			}

			synced++
			observer.IncPullRecord(model.EntityLead, "synced")
			e.appendLog(ctx, &model.SyncLog{
				RunID:      runID,
				EntityType: model.EntityLead,
				EntityID:   &id,
				PabauID:    &lead.PabauID,
				Email:      lead.Email,
				Action:     model.ActionSyncLead,
				Status:     model.StatusSuccess,
				Message:    "Lead synced",
			})

			if lead.CreatedDate != nil {
				if err := e.cursors.Advance(ctx, model.EntityLead, *lead.CreatedDate); err != nil {
					logger.FromContext(ctx).Warn("Failed to advance lead cursor", zap.Error(err))
				}
			}
		}

		if page%50 == 0 {
			logger.FromContext(ctx).Info("Lead pull progress",
				zap.Int("page", page),
				zap.Int("fetched", totalFetched),
				zap.Int("synced", synced))
		}

		if len(payloads) < e.source.PageSize() {
			break
		}
	}

	logger.FromContext(ctx).Info("Lead pull finished",
		zap.Int("fetched", totalFetched),
		zap.Int("synced", synced),
		zap.Int("skipped_old", skippedOld),
		zap.Int("skipped_no_email", skippedNoEmail),
		zap.Int("errors", errCount))

	e.appendLog(ctx, &model.SyncLog{
		RunID:      runID,
		EntityType: model.EntitySyncRun,
		Action:     model.ActionLeadsCompleted,
		Status:     model.StatusSuccess,
		Message:    fmt.Sprintf("Synced %d leads from %d fetched", synced, totalFetched),
	})
	return nil
}

// skipBeforeCutoff reports whether a record should be skipped as already
// ingested. With no cursor everything is ingested; with a cursor, records
// missing a created date or at-or-before the cursor are skipped.
func skipBeforeCutoff(cutoff, created *time.Time) bool {
	if cutoff == nil {
		return false
	}
	if created == nil {
		return true
	}
	return !created.After(*cutoff)
}

func logCursor(ctx context.Context, entityType string, cutoff *time.Time) {
	if cutoff == nil {
		logger.FromContext(ctx).Info("First sync, ingesting everything",
			zap.String("entity_type", entityType))
		return
	}
	logger.FromContext(ctx).Info("Resuming from cursor",
		zap.String("entity_type", entityType),
		zap.Time("cutoff", *cutoff))
}
