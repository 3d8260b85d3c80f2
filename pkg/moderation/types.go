package moderation

import (
	"errors"
	"time"

	"github.com/parleyhq/parley/pkg/members"
)

var (
	// ErrWarningNotFound is returned when no warning matches the lookup
	ErrWarningNotFound = errors.New("warning not found")
	// ErrNotWarningTarget is returned when a member tries to acknowledge
	// a warning issued to someone else
	ErrNotWarningTarget = errors.New("warning belongs to another member")
	// ErrEmptyReason is returned when a warning is issued without a reason
	ErrEmptyReason = errors.New("warning reason must not be empty")
)

// Warning is a single moderation warning issued to a member
type Warning struct {
	ID             int64      `json:"id"`
	TargetID       int64      `json:"target_id"`
	IssuerID       int64      `json:"issuer_id"`
	Reason         string     `json:"reason"`
	ContentType    string     `json:"content_type,omitempty"`
	ContentID      int64      `json:"content_id,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// State is a member's position in the moderation lifecycle
type State string

const (
	// StateClear means no warnings on record
	StateClear State = "clear"
	// StateWarned means at least one warning below the ban threshold
	StateWarned State = "warned"
	// StateBanned means the member is banned and the ban is in force
	StateBanned State = "banned"
)

// StateFor derives a member's moderation state at the given instant
func StateFor(m *members.Member, now time.Time) State {
	if m.BanActive(now) {
		return StateBanned
	}
	if m.WarningCount > 0 {
		return StateWarned
	}
	return StateClear
}
