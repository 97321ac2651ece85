package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/apperrors"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Get returns the pull high-water mark for an entity type, or nil if no
// cursor exists yet (first sync).
func (r *PostgresRepo) Get(ctx context.Context, entityType string) (*time.Time, error) {
	var cursor model.SyncCursor
	operation := func() error {
		result := r.db.WithContext(ctx).Where("entity_type = ?", entityType).First(&cursor)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: cursor %s: %w", apperrors.ErrNotFound, entityType, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "GetCursor", operation)
	observer.ObserveDbOperationDuration("get", "sync_cursor", time.Since(startTime), findErr)
	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, nil
		}
		logger.FromContext(ctx).Error("Failed to read cursor after retries",
			zap.String("entity_type", entityType), zap.Error(findErr))
		return nil, findErr
	}
	return &cursor.LastCreatedDate, nil
}

// Advance moves the cursor forward, never back: the stored value only
// changes when t is greater than it.
func (r *PostgresRepo) Advance(ctx context.Context, entityType string, t time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "entity_type"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_created_date": gorm.Expr("GREATEST(sync_cursors.last_created_date, excluded.last_created_date)"),
				"updated_at":        utils.Now(),
			}),
		}).Create(&model.SyncCursor{
			EntityType:      entityType,
			LastCreatedDate: t,
		})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AdvanceCursor", operation)
	observer.ObserveDbOperationDuration("advance", "sync_cursor", time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to advance cursor after retries",
			zap.String("entity_type", entityType), zap.Time("to", t), zap.Error(commitErr))
		return commitErr
	}
	return nil
}
