package moderation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStore implements Store over database/sql. It is compatible with both
// the "postgres" (lib/pq) and "sqlite3" (mattn/go-sqlite3) drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore creates a SQL-backed warning store. driver must be the
// database/sql driver name the *sql.DB was opened with.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// EnsureSchema creates the warnings table if it does not exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	idColumn := "BIGSERIAL PRIMARY KEY"
	if s.driver == "sqlite3" {
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS warnings (
			id %s,
			target_id BIGINT NOT NULL,
			issuer_id BIGINT NOT NULL,
			reason TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			content_id BIGINT NOT NULL DEFAULT 0,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			acknowledged_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`, idColumn)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create warnings table: %w", err)
	}
	return nil
}

const warningColumns = `id, target_id, issuer_id, reason, content_type, content_id,
	acknowledged, acknowledged_at, created_at`

// Create persists a new warning and assigns its ID
func (s *SQLStore) Create(ctx context.Context, w *Warning) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO warnings (target_id, issuer_id, reason, content_type, content_id,
			acknowledged, acknowledged_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, w.TargetID, w.IssuerID, w.Reason, w.ContentType, w.ContentID,
		w.Acknowledged, w.AcknowledgedAt, w.CreatedAt,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to create warning: %w", err)
	}
	return nil
}

// FindByID returns the warning with the given identifier
func (s *SQLStore) FindByID(ctx context.Context, id int64) (*Warning, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+warningColumns+`
		FROM warnings WHERE id = $1
	`, id)

	w, err := scanWarning(row)
	if err == sql.ErrNoRows {
		return nil, ErrWarningNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load warning %d: %w", id, err)
	}
	return w, nil
}

// ListByTarget returns the member's warnings, newest first
func (s *SQLStore) ListByTarget(ctx context.Context, targetID int64) ([]*Warning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+warningColumns+`
		FROM warnings WHERE target_id = $1
		ORDER BY created_at DESC, id DESC
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings for member %d: %w", targetID, err)
	}
	defer rows.Close()

	var result []*Warning
	for rows.Next() {
		w, err := scanWarning(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// Delete removes the warning with the given identifier
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete warning %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrWarningNotFound
	}
	return nil
}

// Acknowledge marks the warning acknowledged exactly once. The
// acknowledged = FALSE guard makes repeat calls no-ops that preserve the
// original timestamp.
func (s *SQLStore) Acknowledge(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE warnings
		SET acknowledged = TRUE, acknowledged_at = $2
		WHERE id = $1 AND acknowledged = FALSE
	`, id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge warning %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// scanWarning scans a warning from a database row
func scanWarning(scanner interface {
	Scan(dest ...interface{}) error
}) (*Warning, error) {
	var w Warning
	var acknowledgedAt sql.NullTime

	err := scanner.Scan(
		&w.ID,
		&w.TargetID,
		&w.IssuerID,
		&w.Reason,
		&w.ContentType,
		&w.ContentID,
		&w.Acknowledged,
		&acknowledgedAt,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		w.AcknowledgedAt = &t
	}
	return &w, nil
}
