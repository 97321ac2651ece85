package storage

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Append writes one audit row. The table is append-only; rows are never
// updated or deleted.
func (r *PostgresRepo) Append(ctx context.Context, entry *model.SyncLog) error {
	operation := func() error {
		if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AppendSyncLog", operation)
	observer.ObserveDbOperationDuration("append", "sync_log", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to append sync log after retries",
			zap.String("action", entry.Action), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// LastCompleted returns the creation time of the most recent successful
// entry among the given actions, or nil when none exists. The pull and push
// passes use this to coordinate across restarts.
func (r *PostgresRepo) LastCompleted(ctx context.Context, actions ...string) (*time.Time, error) {
	var last sql.NullTime
	operation := func() error {
		return r.db.WithContext(ctx).Model(&model.SyncLog{}).
			Select("MAX(created_at)").
			Where("action IN ? AND status = ?", actions, model.StatusSuccess).
			Scan(&last).Error
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "LastCompleted", operation)
	observer.ObserveDbOperationDuration("last_completed", "sync_log", time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to query last completed marker after retries",
			zap.Strings("actions", actions), zap.Error(findErr))
		return nil, findErr
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// clientPushCandidatesSQL joins successful pull log entries since the last
// push back to their client rows, attaching each client's most recent
// appointment. DISTINCT ON collapses repeated log entries per client.
const clientPushCandidatesSQL = `
SELECT DISTINCT ON (c.id)
    c.id AS db_id,
    c.pabau_id,
    c.first_name,
    c.last_name,
    c.email,
    c.phone,
    c.mobile,
    c.gender,
    c.opt_in_phone AS phone_opt_in,
    a.appointment_date,
    a.appointment_datetime,
    a.service,
    a.duration,
    a.appointment_status,
    a.appt_with,
    a.created_by AS appt_created_by,
    a.created_date AS appt_created_date
FROM sync_logs sl
INNER JOIN clients c ON c.email = sl.email
LEFT JOIN LATERAL (
    SELECT *
    FROM appointments
    WHERE client_pabau_id = c.pabau_id
    ORDER BY appointment_datetime DESC NULLS LAST
    LIMIT 1
) a ON true
WHERE sl.action = ?
  AND sl.status = ?
  AND sl.created_at > ?
  AND c.opt_in_email = 1
  AND c.email IS NOT NULL AND c.email <> ''
  AND c.is_active = 1
ORDER BY c.id`

// leadPushCandidatesSQL is the lead variant. Leads carry no gender, phone
// consent or appointments, so those columns come back zero-valued.
const leadPushCandidatesSQL = `
SELECT DISTINCT ON (l.id)
    l.id AS db_id,
    l.pabau_id,
    l.first_name,
    l.last_name,
    l.email,
    l.phone,
    l.mobile,
    '' AS gender,
    0 AS phone_opt_in
FROM sync_logs sl
INNER JOIN leads l ON l.email = sl.email
WHERE sl.action = ?
  AND sl.status = ?
  AND sl.created_at > ?
  AND l.opt_in_email_mailchimp = 1
  AND l.email IS NOT NULL AND l.email <> ''
  AND l.is_active = 1
ORDER BY l.id`

// ClientPushCandidates lists clients synced from the CRM after the given
// time that are opted in, active and addressable.
func (r *PostgresRepo) ClientPushCandidates(ctx context.Context, since time.Time) ([]model.PushCandidate, error) {
	return r.pushCandidates(ctx, "client", clientPushCandidatesSQL, model.ActionSyncClient, since)
}

// LeadPushCandidates lists leads synced from the CRM after the given time
// that are opted in, active and addressable.
func (r *PostgresRepo) LeadPushCandidates(ctx context.Context, since time.Time) ([]model.PushCandidate, error) {
	return r.pushCandidates(ctx, "lead", leadPushCandidatesSQL, model.ActionSyncLead, since)
}

func (r *PostgresRepo) pushCandidates(ctx context.Context, entity, query, action string, since time.Time) ([]model.PushCandidate, error) {
	var candidates []model.PushCandidate
	operation := func() error {
		return r.db.WithContext(ctx).
			Raw(query, action, model.StatusSuccess, since).
			Scan(&candidates).Error
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "PushCandidates", operation)
	observer.ObserveDbOperationDuration("push_candidates", entity, time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to query push candidates after retries",
			zap.String("entity_type", entity), zap.Time("since", since), zap.Error(findErr))
		return nil, findErr
	}
	if candidates == nil {
		return []model.PushCandidate{}, nil
	}
	return candidates, nil
}

// RecentEntries returns the newest audit rows, newest first. Used by the
// status endpoint.
func (r *PostgresRepo) RecentEntries(ctx context.Context, limit int) ([]model.SyncLog, error) {
	var entries []model.SyncLog
	operation := func() error {
		return r.db.WithContext(ctx).
			Order("created_at DESC").
			Limit(limit).
			Find(&entries).Error
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "RecentEntries", operation)
	observer.ObserveDbOperationDuration("recent_entries", "sync_log", time.Since(startTime), findErr)
	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to query recent sync log entries after retries",
			zap.Int("limit", limit), zap.Error(findErr))
		return nil, findErr
	}
	if entries == nil {
		return []model.SyncLog{}, nil
	}
	return entries, nil
}
