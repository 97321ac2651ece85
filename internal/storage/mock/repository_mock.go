package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/storage"
)

// --- Repository Mock (Combined Interface) ---

// RepositoryMock mocks the combined Repository interface, handing out the
// embedded per-entity mocks.
type RepositoryMock struct {
	mock.Mock
	ClientRepoMock      ClientRepoMock
	LeadRepoMock        LeadRepoMock
	AppointmentRepoMock AppointmentRepoMock
	SyncLogRepoMock     SyncLogRepoMock
	CursorRepoMock      CursorRepoMock
}

func (m *RepositoryMock) ClientRepo() storage.ClientRepo           { return &m.ClientRepoMock }
func (m *RepositoryMock) LeadRepo() storage.LeadRepo               { return &m.LeadRepoMock }
func (m *RepositoryMock) AppointmentRepo() storage.AppointmentRepo { return &m.AppointmentRepoMock }
func (m *RepositoryMock) SyncLogRepo() storage.SyncLogRepo         { return &m.SyncLogRepoMock }
func (m *RepositoryMock) CursorRepo() storage.CursorRepo           { return &m.CursorRepoMock }

// Close mocks the Close method
func (m *RepositoryMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ClientRepo Mock ---

// ClientRepoMock mocks the ClientRepo interface
type ClientRepoMock struct {
	mock.Mock
}

func (m *ClientRepoMock) Upsert(ctx context.Context, client *model.Client) (int64, error) {
	args := m.Called(ctx, client)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ClientRepoMock) DowngradeEmailConsent(ctx context.Context, email string) (int64, int64, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *ClientRepoMock) MarkPushed(ctx context.Context, ids []int64, status string, tags []string, syncedAt time.Time) error {
	args := m.Called(ctx, ids, status, tags, syncedAt)
	return args.Error(0)
}

// --- LeadRepo Mock ---

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

func (m *LeadRepoMock) Upsert(ctx context.Context, lead *model.Lead) (int64, error) {
	args := m.Called(ctx, lead)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LeadRepoMock) DowngradeEmailConsent(ctx context.Context, email string) (int64, int64, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *LeadRepoMock) MarkPushed(ctx context.Context, ids []int64, status string, tags []string, syncedAt time.Time) error {
	args := m.Called(ctx, ids, status, tags, syncedAt)
	return args.Error(0)
}

// --- AppointmentRepo Mock ---

// AppointmentRepoMock mocks the AppointmentRepo interface
type AppointmentRepoMock struct {
	mock.Mock
}

func (m *AppointmentRepoMock) BulkUpsert(ctx context.Context, appointments []*model.Appointment) error {
	args := m.Called(ctx, appointments)
	return args.Error(0)
}

// --- SyncLogRepo Mock ---

// SyncLogRepoMock mocks the SyncLogRepo interface
type SyncLogRepoMock struct {
	mock.Mock
}

func (m *SyncLogRepoMock) Append(ctx context.Context, entry *model.SyncLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *SyncLogRepoMock) LastCompleted(ctx context.Context, actions ...string) (*time.Time, error) {
	callArgs := make([]interface{}, 0, len(actions)+1)
	callArgs = append(callArgs, ctx)
	for _, a := range actions {
		callArgs = append(callArgs, a)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *SyncLogRepoMock) ClientPushCandidates(ctx context.Context, since time.Time) ([]model.PushCandidate, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PushCandidate), args.Error(1)
}

func (m *SyncLogRepoMock) LeadPushCandidates(ctx context.Context, since time.Time) ([]model.PushCandidate, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PushCandidate), args.Error(1)
}

func (m *SyncLogRepoMock) RecentEntries(ctx context.Context, limit int) ([]model.SyncLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SyncLog), args.Error(1)
}

// --- CursorRepo Mock ---

// CursorRepoMock mocks the CursorRepo interface
type CursorRepoMock struct {
	mock.Mock
}

func (m *CursorRepoMock) Get(ctx context.Context, entityType string) (*time.Time, error) {
	args := m.Called(ctx, entityType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *CursorRepoMock) Advance(ctx context.Context, entityType string, t time.Time) error {
	args := m.Called(ctx, entityType, t)
	return args.Error(0)
}
