package members

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no member matches the lookup
var ErrNotFound = errors.New("member not found")

// Store is the credential store interface consumed by the auth resolver,
// the moderation engine, and the account handlers.
type Store interface {
	// FindByID returns the member with the given identifier, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*Member, error)

	// FindByNameOrEmail returns every member whose name or email equals key,
	// ordered by ascending ID. Callers that need a single match take the
	// first element (lowest identifier wins).
	FindByNameOrEmail(ctx context.Context, key string) ([]*Member, error)

	// Create persists a new member and assigns its ID.
	Create(ctx context.Context, m *Member) error

	// Update persists changes to an existing member's mutable fields.
	Update(ctx context.Context, m *Member) error

	// ExistsByName reports whether a member with the given name exists.
	ExistsByName(ctx context.Context, name string) (bool, error)

	// ExistsByEmail reports whether a member with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// IncrementWarningCount atomically increments the member's warning
	// counter and returns the post-increment value. Concurrent calls for
	// the same member must not lose increments.
	IncrementWarningCount(ctx context.Context, id int64) (int, error)

	// SetBan transitions the member to banned state. The transition applies
	// at most once: it returns true only for the call that flipped the flag,
	// false if the member was already banned.
	SetBan(ctx context.Context, id int64, reason string, expiresAt time.Time) (bool, error)

	// LiftExpiredBans clears the banned state of every member whose ban
	// expiry is at or before now, returning the number of bans lifted.
	LiftExpiredBans(ctx context.Context, now time.Time) (int64, error)
}
