package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/apperrors"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
)

func TestClientUpsertInsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	clients := repo.ClientRepo()

	created := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	client := &model.Client{
		PabauID:     4711,
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@example.com",
		OptInEmail:  1,
		IsActive:    1,
		CreatedDate: &created,
	}

	mock.ExpectQuery(`INSERT INTO "clients" .*ON CONFLICT \("pabau_id"\) DO UPDATE SET.*RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

	id, err := clients.Upsert(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, int64(12), client.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientUpsertPermanentError(t *testing.T) {
	repo, mock := newMockRepo(t)
	clients := repo.ClientRepo()

	mock.ExpectQuery(`INSERT INTO "clients"`).
		WillReturnError(&pgconn.PgError{Code: "23502", ColumnName: "pabau_id"})

	_, err := clients.Upsert(context.Background(), &model.Client{PabauID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientDowngradeEmailConsent(t *testing.T) {
	t.Run("Opted-in row is flipped and stamped", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		clients := repo.ClientRepo()

		// The update must set the sink-sync stamp alongside the flip.
		mock.ExpectExec(`UPDATE "clients" SET .*"mailchimp_last_synced_at".* WHERE LOWER\(email\) = LOWER\(\$\d\) AND opt_in_email = 1`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		matched, changed, err := clients.DowngradeEmailConsent(context.Background(), "Jane@Example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), matched)
		assert.Equal(t, int64(1), changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already opted out still reports the match", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		clients := repo.ClientRepo()

		mock.ExpectExec(`UPDATE "clients" SET .* WHERE LOWER\(email\) = LOWER\(\$\d\) AND opt_in_email = 1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "clients" WHERE LOWER\(email\) = LOWER\(\$\d\)`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

		matched, changed, err := clients.DowngradeEmailConsent(context.Background(), "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), matched)
		assert.Equal(t, int64(0), changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No match is not an error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		clients := repo.ClientRepo()

		mock.ExpectExec(`UPDATE "clients" SET .* WHERE LOWER\(email\) = LOWER\(\$\d\) AND opt_in_email = 1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "clients" WHERE LOWER\(email\) = LOWER\(\$\d\)`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

		matched, changed, err := clients.DowngradeEmailConsent(context.Background(), "stranger@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(0), matched)
		assert.Equal(t, int64(0), changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClientMarkPushed(t *testing.T) {
	repo, mock := newMockRepo(t)
	clients := repo.ClientRepo()

	mock.ExpectExec(`UPDATE "clients" SET .* WHERE id IN \(\$\d,\$\d\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := clients.MarkPushed(context.Background(), []int64{12, 13},
		"subscribed", []string{"Pabau Clients"}, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientMarkPushedEmptyIDs(t *testing.T) {
	repo, mock := newMockRepo(t)
	clients := repo.ClientRepo()

	// No SQL at all for an empty id list.
	err := clients.MarkPushed(context.Background(), nil, "subscribed", nil, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
