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

// leadRepo is the LeadRepo view over PostgresRepo.
type leadRepo struct {
	*PostgresRepo
}

// Upsert inserts or overwrites a lead keyed on pabau_id and returns the
// internal row id. Audience-derived columns are excluded from the overwrite.
func (r leadRepo) Upsert(ctx context.Context, lead *model.Lead) (int64, error) {
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pabau_id"}},
			DoUpdates: clause.AssignmentColumns(model.LeadUpdateColumns()),
		}).Create(lead)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if lead.ID == 0 {
			var id int64
			if err := r.db.WithContext(ctx).Model(&model.Lead{}).
				Select("id").Where("pabau_id = ?", lead.PabauID).Scan(&id).Error; err != nil {
				return fmt.Errorf("%w: failed to read back lead id: %w", apperrors.ErrDatabase, err)
			}
			lead.ID = id
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertLead", operation)
	observer.ObserveDbOperationDuration("upsert", "lead", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert lead after retries",
			zap.Int64("pabau_id", lead.PabauID), zap.Error(commitErr))
		return 0, commitErr
	}
	return lead.ID, nil
}

// DowngradeEmailConsent flips opt_in_email_mailchimp 1 -> 0 for the given
// email. One-directional, same matched/changed contract as the client
// variant.
func (r leadRepo) DowngradeEmailConsent(ctx context.Context, email string) (matched, changed int64, err error) {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Lead{}).
			Where("LOWER(email) = LOWER(?) AND opt_in_email_mailchimp = 1", email).
			Updates(map[string]interface{}{
				"opt_in_email_mailchimp":   0,
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
		if err := r.db.WithContext(ctx).Model(&model.Lead{}).
			Where("LOWER(email) = LOWER(?)", email).
			Count(&matched).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "DowngradeLeadConsent", operation)
	observer.ObserveDbOperationDuration("downgrade_consent", "lead", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to downgrade lead consent after retries",
			zap.String("email", email), zap.Error(commitErr))
		return 0, 0, commitErr
	}
	return matched, changed, nil
}

// MarkPushed records the audience linkage after a successful push batch.
func (r leadRepo) MarkPushed(ctx context.Context, ids []int64, status string, tags []string, syncedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Lead{}).
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
	commitErr := retryableOperation(ctx, commitPolicy, "MarkLeadsPushed", operation)
	observer.ObserveDbOperationDuration("mark_pushed", "lead", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to mark leads pushed after retries",
			zap.Int("count", len(ids)), zap.Error(commitErr))
		return commitErr
	}
	return nil
}
