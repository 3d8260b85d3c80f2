package audit

import (
	"context"
	"sync"
	"time"
)

// Kind classifies an audit event
type Kind string

const (
	KindRegister     Kind = "member.register"
	KindLogin        Kind = "member.login"
	KindLoginFailed  Kind = "member.login_failed"
	KindLogout       Kind = "member.logout"
	KindWarning      Kind = "moderation.warning"
	KindWarningAcked Kind = "moderation.warning_acknowledged"
	KindBan          Kind = "moderation.ban"
	KindBanLifted    Kind = "moderation.ban_lifted"
)

// Event is a single audit trail entry
type Event struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	ActorID   int64     `json:"actor_id,omitempty"`
	TargetID  int64     `json:"target_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder appends events to the trail
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// MemoryRecorder keeps the trail in memory, for tests and the in-memory
// store mode.
type MemoryRecorder struct {
	mu     sync.Mutex
	nextID int64
	events []Event
}

// NewMemoryRecorder creates an empty in-memory trail
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{nextID: 1}
}

// Record appends an event, assigning its ID and timestamp if unset
func (r *MemoryRecorder) Record(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = r.nextID
	r.nextID++
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded trail in insertion order
func (r *MemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// NopRecorder discards every event
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) error { return nil }
