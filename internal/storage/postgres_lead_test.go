package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
)

func TestLeadUpsertInsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	leads := repo.LeadRepo()

	lead := &model.Lead{
		PabauID:             88001,
		FirstName:           "Sam",
		Email:               "sam@example.com",
		OptInEmailMailchimp: 1,
		IsActive:            1,
	}

	mock.ExpectQuery(`INSERT INTO "leads" .*ON CONFLICT \("pabau_id"\) DO UPDATE SET.*RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	id, err := leads.Upsert(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadDowngradeEmailConsent(t *testing.T) {
	repo, mock := newMockRepo(t)
	leads := repo.LeadRepo()

	mock.ExpectExec(`UPDATE "leads" SET .*"mailchimp_last_synced_at".* WHERE LOWER\(email\) = LOWER\(\$\d\) AND opt_in_email_mailchimp = 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	matched, changed, err := leads.DowngradeEmailConsent(context.Background(), "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.Equal(t, int64(1), changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadDowngradeEmailConsentAlreadyOptedOut(t *testing.T) {
	repo, mock := newMockRepo(t)
	leads := repo.LeadRepo()

	mock.ExpectExec(`UPDATE "leads" SET .* WHERE LOWER\(email\) = LOWER\(\$\d\) AND opt_in_email_mailchimp = 1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "leads" WHERE LOWER\(email\) = LOWER\(\$\d\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	matched, changed, err := leads.DowngradeEmailConsent(context.Background(), "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.Equal(t, int64(0), changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadMarkPushed(t *testing.T) {
	repo, mock := newMockRepo(t)
	leads := repo.LeadRepo()

	mock.ExpectExec(`UPDATE "leads" SET .* WHERE id IN \(\$\d\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := leads.MarkPushed(context.Background(), []int64{5},
		"subscribed", []string{"Pabau Leads"}, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
