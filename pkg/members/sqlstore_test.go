package members

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberRows(m *Member) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "active", "admin", "warning_count",
		"banned", "ban_reason", "ban_expires_at", "roles", "created_at", "updated_at",
	})
	rows.AddRow(m.ID, m.Name, m.Email, m.PasswordHash, m.Active, m.Admin, m.WarningCount,
		m.Banned, m.BanReason, m.BanExpiresAt, `["member"]`, m.CreatedAt, m.UpdatedAt)
	return rows
}

func TestSQLStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	now := time.Now().UTC()
	want := &Member{
		ID: 7, Name: "alice", Email: "alice@example.com", PasswordHash: "h",
		Active: true, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery(`SELECT .+ FROM members WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(memberRows(want))

	got, err := store.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, []string{"member"}, got.Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_FindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")

	mock.ExpectQuery(`SELECT .+ FROM members WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = store.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_FindByNameOrEmail_Ordered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "active", "admin", "warning_count",
		"banned", "ban_reason", "ban_expires_at", "roles", "created_at", "updated_at",
	}).
		AddRow(1, "shared", "a@example.com", "h", true, false, 0, false, "", nil, "[]", now, now).
		AddRow(3, "other", "shared", "h", true, false, 0, false, "", nil, "[]", now, now)

	mock.ExpectQuery(`SELECT .+ FROM members WHERE name = \$1 OR email = \$1\s+ORDER BY id ASC`).
		WithArgs("shared").
		WillReturnRows(rows)

	got, err := store.FindByNameOrEmail(context.Background(), "shared")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
}

func TestSQLStore_Create_AssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	m := &Member{Name: "bob", Email: "bob@example.com", PasswordHash: "h", Active: true, Roles: []string{"member"}}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO members`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	require.NoError(t, store.Create(context.Background(), m))
	assert.Equal(t, int64(11), m.ID)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestSQLStore_IncrementWarningCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")

	mock.ExpectQuery(`UPDATE members\s+SET warning_count = warning_count \+ 1`).
		WithArgs(int64(5), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"warning_count"}).AddRow(3))

	count, err := store.IncrementWarningCount(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLStore_SetBan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")
	expiry := time.Now().Add(30 * 24 * time.Hour)

	// First transition flips the flag.
	mock.ExpectExec(`UPDATE members\s+SET banned = TRUE`).
		WithArgs(int64(5), "3 warnings", expiry, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := store.SetBan(context.Background(), 5, "3 warnings", expiry)
	require.NoError(t, err)
	assert.True(t, applied)

	// Already banned: the banned = FALSE guard matches no rows.
	mock.ExpectExec(`UPDATE members\s+SET banned = TRUE`).
		WithArgs(int64(5), "3 warnings", expiry, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err = store.SetBan(context.Background(), 5, "3 warnings", expiry)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSQLStore_LiftExpiredBans(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")

	mock.ExpectExec(`UPDATE members\s+SET banned = FALSE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	lifted, err := store.LiftExpiredBans(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), lifted)
}

func TestSQLStore_ExistsByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, "postgres")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM members WHERE name = $1`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := store.ExistsByName(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM members WHERE name = $1`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = store.ExistsByName(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}
