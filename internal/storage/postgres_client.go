package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/apperrors"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// clientRepo is the ClientRepo view over PostgresRepo.
type clientRepo struct {
	*PostgresRepo
}

// Upsert inserts or overwrites a client keyed on pabau_id and returns the
// internal row id. Conflict handling overwrites the CRM-owned columns only;
// audience-derived columns (mailchimp_*) are left alone so a re-pull never
// clobbers unsubscribe state.
func (r clientRepo) Upsert(ctx context.Context, client *model.Client) (int64, error) {
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pabau_id"}},
			DoUpdates: clause.AssignmentColumns(model.ClientUpdateColumns()),
		}).Create(client)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if client.ID == 0 {
			// Conflict path: gorm doesn't populate the id, read it back.
			var id int64
			if err := r.db.WithContext(ctx).Model(&model.Client{}).
				Select("id").Where("pabau_id = ?", client.PabauID).Scan(&id).Error; err != nil {
				return fmt.Errorf("%w: failed to read back client id: %w", apperrors.ErrDatabase, err)
			}
			client.ID = id
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertClient", operation)
	observer.ObserveDbOperationDuration("upsert", "client", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert client after retries",
			zap.Int64("pabau_id", client.PabauID), zap.Error(commitErr))
		return 0, commitErr
	}
	return client.ID, nil
}

// DowngradeEmailConsent flips opt_in_email 1 -> 0 for the given email,
// marks the audience status unsubscribed and stamps the sink-sync time. The
// update is one-directional: a row already at 0 is untouched. Matched counts
// rows holding the email regardless of current consent, changed counts rows
// actually flipped; callers use matched to decide ownership of the email, so
// a re-run reports matched > 0 with changed == 0 instead of falling through.
func (r clientRepo) DowngradeEmailConsent(ctx context.Context, email string) (matched, changed int64, err error) {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Client{}).
			Where("LOWER(email) = LOWER(?) AND opt_in_email = 1", email).
			Updates(map[string]interface{}{
				"opt_in_email":             0,
				"mailchimp_status":         "unsubscribed",
				"mailchimp_last_synced_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		changed = result.RowsAffected
		if changed > 0 {
			matched = changed
			return nil
		}
		if err := r.db.WithContext(ctx).Model(&model.Client{}).
			Where("LOWER(email) = LOWER(?)", email).
			Count(&matched).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "DowngradeClientConsent", operation)
	observer.ObserveDbOperationDuration("downgrade_consent", "client", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to downgrade client consent after retries",
			zap.String("email", email), zap.Error(commitErr))
		return 0, 0, commitErr
	}
	return matched, changed, nil
}

// MarkPushed records the audience linkage after a successful push batch.
func (r clientRepo) MarkPushed(ctx context.Context, ids []int64, status string, tags []string, syncedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Client{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"mailchimp_status":         status,
				"mailchimp_tags":           datatypes.JSON(utils.MustMarshalJSON(tags)),
				"mailchimp_last_synced_at": syncedAt,
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "MarkClientsPushed", operation)
	observer.ObserveDbOperationDuration("mark_pushed", "client", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to mark clients pushed after retries",
			zap.Int("count", len(ids)), zap.Error(commitErr))
		return commitErr
	}
	return nil
}
