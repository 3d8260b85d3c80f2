package moderation

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warningRows(w *Warning) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "target_id", "issuer_id", "reason", "content_type", "content_id",
		"acknowledged", "acknowledged_at", "created_at",
	})
	rows.AddRow(w.ID, w.TargetID, w.IssuerID, w.Reason, w.ContentType, w.ContentID,
		w.Acknowledged, w.AcknowledgedAt, w.CreatedAt)
	return rows
}

func TestSQLStore_Create_AssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	w := &Warning{TargetID: 2, IssuerID: 1, Reason: "spam"}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO warnings`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	require.NoError(t, store.Create(context.Background(), w))
	assert.Equal(t, int64(4), w.ID)
	assert.False(t, w.CreatedAt.IsZero())
}

func TestSQLStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	want := &Warning{ID: 4, TargetID: 2, IssuerID: 1, Reason: "spam", CreatedAt: time.Now().UTC()}

	mock.ExpectQuery(`SELECT .+ FROM warnings WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(warningRows(want))

	got, err := store.FindByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ID)
	assert.Equal(t, "spam", got.Reason)
	assert.Nil(t, got.AcknowledgedAt)
}

func TestSQLStore_FindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")

	mock.ExpectQuery(`SELECT .+ FROM warnings WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = store.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrWarningNotFound)
}

func TestSQLStore_ListByTarget(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "target_id", "issuer_id", "reason", "content_type", "content_id",
		"acknowledged", "acknowledged_at", "created_at",
	}).
		AddRow(2, 7, 1, "second", "", 0, false, nil, now).
		AddRow(1, 7, 1, "first", "reply", 33, true, now, now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM warnings WHERE target_id = \$1\s+ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	got, err := store.ListByTarget(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Reason)
	assert.Equal(t, "reply", got[1].ContentType)
	assert.NotNil(t, got[1].AcknowledgedAt)
}

func TestSQLStore_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")

	mock.ExpectExec(`DELETE FROM warnings WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(context.Background(), 4))

	mock.ExpectExec(`DELETE FROM warnings WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Delete(context.Background(), 99), ErrWarningNotFound)
}

func TestSQLStore_Acknowledge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	at := time.Now()

	// First acknowledgement flips the flag.
	mock.ExpectExec(`UPDATE warnings\s+SET acknowledged = TRUE`).
		WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	flipped, err := store.Acknowledge(context.Background(), 4, at)
	require.NoError(t, err)
	assert.True(t, flipped)

	// Repeat: the acknowledged = FALSE guard matches no rows.
	mock.ExpectExec(`UPDATE warnings\s+SET acknowledged = TRUE`).
		WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err = store.Acknowledge(context.Background(), 4, at)
	require.NoError(t, err)
	assert.False(t, flipped)
}
