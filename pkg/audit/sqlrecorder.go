package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLRecorder appends events to an audit_events table. It shares the
// database handle with the member store.
type SQLRecorder struct {
	db *sql.DB
}

// NewSQLRecorder creates a recorder over the given database
func NewSQLRecorder(db *sql.DB) *SQLRecorder {
	return &SQLRecorder{db: db}
}

// EnsureSchema creates the audit_events table if it does not exist.
// The driver argument selects the ID column syntax ("postgres" or
// "sqlite3").
func (r *SQLRecorder) EnsureSchema(ctx context.Context, driver string) error {
	idColumn := "BIGSERIAL PRIMARY KEY"
	if driver == "sqlite3" {
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id %s,
			kind TEXT NOT NULL,
			actor_id BIGINT NOT NULL DEFAULT 0,
			target_id BIGINT NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`, idColumn)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}
	return nil
}

// Record appends an event
func (r *SQLRecorder) Record(ctx context.Context, event Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (kind, actor_id, target_id, detail, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(event.Kind), event.ActorID, event.TargetID, event.Detail, event.RequestID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}
