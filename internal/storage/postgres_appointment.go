package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// BulkUpsert upserts appointments on the composite dedup key
// (client_pabau_id, appointment_datetime, service). A conflict overwrites
// every payload column, so the richest payload seen last wins. Duplicates
// within one batch are collapsed first: Postgres rejects a multi-row upsert
// that touches the same conflict target twice.
func (r *PostgresRepo) BulkUpsert(ctx context.Context, appointments []*model.Appointment) error {
	appointments = collapseDuplicateAppointments(appointments)
	if len(appointments) == 0 {
		return nil
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "client_pabau_id"},
				{Name: "appointment_datetime"},
				{Name: "service"},
			},
			DoUpdates: clause.AssignmentColumns(model.AppointmentUpdateColumns()),
		}).Create(&appointments)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "BulkUpsertAppointments", operation)
	observer.ObserveDbOperationDuration("bulk_upsert", "appointment", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to bulk upsert appointments after retries",
			zap.Int("count", len(appointments)), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

type appointmentConflictKey struct {
	clientPabauID int64
	datetime      int64
	service       string
}

// collapseDuplicateAppointments drops earlier rows sharing the conflict
// target so one statement never updates the same row twice; the later
// payload wins, keeping first-seen order. Rows with a null datetime never
// conflict (null index values are distinct) and pass through untouched.
func collapseDuplicateAppointments(appointments []*model.Appointment) []*model.Appointment {
	seen := make(map[appointmentConflictKey]int, len(appointments))
	out := make([]*model.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.AppointmentDatetime == nil {
			out = append(out, a)
			continue
		}
		k := appointmentConflictKey{
			clientPabauID: a.ClientPabauID,
			datetime:      a.AppointmentDatetime.UnixNano(),
			service:       a.Service,
		}
		if i, ok := seen[k]; ok {
			out[i] = a
			continue
		}
		seen[k] = len(out)
		out = append(out, a)
	}
	return out
}
