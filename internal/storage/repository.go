package storage

import (
	"context"
	"time"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
)

// ClientRepo defines client storage operations. DowngradeEmailConsent
// reports matched (rows holding the email) and changed (rows flipped)
// separately.
type ClientRepo interface {
	Upsert(ctx context.Context, client *model.Client) (int64, error)
	DowngradeEmailConsent(ctx context.Context, email string) (matched, changed int64, err error)
	MarkPushed(ctx context.Context, ids []int64, status string, tags []string, syncedAt time.Time) error
}

// LeadRepo defines lead storage operations
type LeadRepo interface {
	Upsert(ctx context.Context, lead *model.Lead) (int64, error)
	DowngradeEmailConsent(ctx context.Context, email string) (matched, changed int64, err error)
	MarkPushed(ctx context.Context, ids []int64, status string, tags []string, syncedAt time.Time) error
}

// AppointmentRepo defines appointment storage operations
type AppointmentRepo interface {
	BulkUpsert(ctx context.Context, appointments []*model.Appointment) error
}

// SyncLogRepo defines the append-only audit log operations. The log doubles
// as the coordination clock between the pull and push passes.
type SyncLogRepo interface {
	Append(ctx context.Context, entry *model.SyncLog) error
	LastCompleted(ctx context.Context, actions ...string) (*time.Time, error)
	ClientPushCandidates(ctx context.Context, since time.Time) ([]model.PushCandidate, error)
	LeadPushCandidates(ctx context.Context, since time.Time) ([]model.PushCandidate, error)
	RecentEntries(ctx context.Context, limit int) ([]model.SyncLog, error)
}

// CursorRepo defines the per-entity-type pull high-water mark operations
type CursorRepo interface {
	Get(ctx context.Context, entityType string) (*time.Time, error)
	Advance(ctx context.Context, entityType string, t time.Time) error
}

// Repository aggregates every storage concern behind one handle.
type Repository interface {
	ClientRepo() ClientRepo
	LeadRepo() LeadRepo
	AppointmentRepo() AppointmentRepo
	SyncLogRepo() SyncLogRepo
	CursorRepo() CursorRepo
	Close(ctx context.Context) error
}
