package members

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLStore implements Store over database/sql. It is compatible with both
// the "postgres" (lib/pq) and "sqlite3" (mattn/go-sqlite3) drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore creates a SQL-backed member store. driver must be the
// database/sql driver name the *sql.DB was opened with.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// EnsureSchema creates the members table if it does not exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	idColumn := "BIGSERIAL PRIMARY KEY"
	if s.driver == "sqlite3" {
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS members (
			id %s,
			name TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			admin BOOLEAN NOT NULL DEFAULT FALSE,
			warning_count INTEGER NOT NULL DEFAULT 0,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			ban_reason TEXT NOT NULL DEFAULT '',
			ban_expires_at TIMESTAMP,
			roles TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, idColumn)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}
	return nil
}

const memberColumns = `id, name, email, password_hash, active, admin, warning_count,
	banned, ban_reason, ban_expires_at, roles, created_at, updated_at`

// FindByID returns the member with the given identifier
func (s *SQLStore) FindByID(ctx context.Context, id int64) (*Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM members WHERE id = $1
	`, id)

	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load member %d: %w", id, err)
	}
	return m, nil
}

// FindByNameOrEmail returns all members matching by name or email,
// ordered by ascending ID
func (s *SQLStore) FindByNameOrEmail(ctx context.Context, key string) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members WHERE name = $1 OR email = $1
		ORDER BY id ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query members by name or email: %w", err)
	}
	defer rows.Close()

	var result []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Create persists a new member and assigns its ID
func (s *SQLStore) Create(ctx context.Context, m *Member) error {
	rolesJSON, err := json.Marshal(m.Roles)
	if err != nil {
		return fmt.Errorf("failed to marshal roles: %w", err)
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO members (name, email, password_hash, active, admin, warning_count,
			banned, ban_reason, ban_expires_at, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, m.Name, m.Email, m.PasswordHash, m.Active, m.Admin, m.WarningCount,
		m.Banned, m.BanReason, m.BanExpiresAt, string(rolesJSON), m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// Update persists changes to an existing member
func (s *SQLStore) Update(ctx context.Context, m *Member) error {
	rolesJSON, err := json.Marshal(m.Roles)
	if err != nil {
		return fmt.Errorf("failed to marshal roles: %w", err)
	}

	m.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET name = $2, email = $3, password_hash = $4, active = $5, admin = $6,
			warning_count = $7, banned = $8, ban_reason = $9, ban_expires_at = $10,
			roles = $11, updated_at = $12
		WHERE id = $1
	`, m.ID, m.Name, m.Email, m.PasswordHash, m.Active, m.Admin,
		m.WarningCount, m.Banned, m.BanReason, m.BanExpiresAt,
		string(rolesJSON), m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update member %d: %w", m.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByName reports whether a member with the given name exists
func (s *SQLStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM members WHERE name = $1`, name)
}

// ExistsByEmail reports whether a member with the given email exists
func (s *SQLStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM members WHERE email = $1`, email)
}

func (s *SQLStore) exists(ctx context.Context, query, arg string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence check failed: %w", err)
	}
	return true, nil
}

// IncrementWarningCount atomically increments and returns the warning counter.
// A single UPDATE ... RETURNING is the increment-and-fetch primitive: the
// database serializes concurrent increments on the member row, so no
// increment is lost and each caller observes a distinct post-increment value.
func (s *SQLStore) IncrementWarningCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		UPDATE members
		SET warning_count = warning_count + 1, updated_at = $2
		WHERE id = $1
		RETURNING warning_count
	`, id, time.Now().UTC()).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment warning count for member %d: %w", id, err)
	}
	return count, nil
}

// SetBan transitions the member to banned state exactly once. The
// banned = FALSE guard makes the transition idempotent under concurrent
// callers: only one UPDATE affects a row.
func (s *SQLStore) SetBan(ctx context.Context, id int64, reason string, expiresAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET banned = TRUE, ban_reason = $2, ban_expires_at = $3, updated_at = $4
		WHERE id = $1 AND banned = FALSE
	`, id, reason, expiresAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to ban member %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// LiftExpiredBans clears expired bans and returns the number lifted
func (s *SQLStore) LiftExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET banned = FALSE, ban_reason = '', ban_expires_at = NULL, updated_at = $1
		WHERE banned = TRUE AND ban_expires_at IS NOT NULL AND ban_expires_at <= $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to lift expired bans: %w", err)
	}
	return result.RowsAffected()
}

// scanMember scans a member from a database row
func scanMember(scanner interface {
	Scan(dest ...interface{}) error
}) (*Member, error) {
	var m Member
	var rolesJSON string
	var banExpiresAt sql.NullTime

	err := scanner.Scan(
		&m.ID,
		&m.Name,
		&m.Email,
		&m.PasswordHash,
		&m.Active,
		&m.Admin,
		&m.WarningCount,
		&m.Banned,
		&m.BanReason,
		&banExpiresAt,
		&rolesJSON,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if banExpiresAt.Valid {
		t := banExpiresAt.Time
		m.BanExpiresAt = &t
	}

	if rolesJSON != "" {
		if err := json.Unmarshal([]byte(rolesJSON), &m.Roles); err != nil {
			m.Roles = []string{}
		}
	} else {
		m.Roles = []string{}
	}

	return &m, nil
}
