package moderation

import (
	"context"
	"time"
)

// Store persists warnings
type Store interface {
	// Create persists a new warning and assigns its ID.
	Create(ctx context.Context, w *Warning) error

	// FindByID returns the warning with the given identifier, or
	// ErrWarningNotFound.
	FindByID(ctx context.Context, id int64) (*Warning, error)

	// ListByTarget returns every warning issued to the member, newest first.
	ListByTarget(ctx context.Context, targetID int64) ([]*Warning, error)

	// Delete removes the warning, or returns ErrWarningNotFound.
	Delete(ctx context.Context, id int64) error

	// Acknowledge marks the warning acknowledged at the given instant.
	// It returns true only for the call that flipped the flag; repeat
	// calls return false with no error and leave the original timestamp.
	Acknowledge(ctx context.Context, id int64, at time.Time) (bool, error)
}
