package moderation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory warning store used by tests and by
// standalone runs that do not configure a database.
type MemoryStore struct {
	mu       sync.RWMutex
	warnings map[int64]*Warning
	nextID   int64
}

// NewMemoryStore creates an empty in-memory warning store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		warnings: make(map[int64]*Warning),
		nextID:   1,
	}
}

// Create persists a new warning and assigns its ID
func (s *MemoryStore) Create(ctx context.Context, w *Warning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.ID = s.nextID
	s.nextID++
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	s.warnings[w.ID] = copyWarning(w)
	return nil
}

// FindByID returns the warning with the given identifier
func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*Warning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.warnings[id]
	if !ok {
		return nil, ErrWarningNotFound
	}
	return copyWarning(w), nil
}

// ListByTarget returns the member's warnings, newest first
func (s *MemoryStore) ListByTarget(ctx context.Context, targetID int64) ([]*Warning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Warning
	for _, w := range s.warnings {
		if w.TargetID == targetID {
			result = append(result, copyWarning(w))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes the warning with the given identifier
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.warnings[id]; !ok {
		return ErrWarningNotFound
	}
	delete(s.warnings, id)
	return nil
}

// Acknowledge marks the warning acknowledged exactly once
func (s *MemoryStore) Acknowledge(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.warnings[id]
	if !ok {
		return false, ErrWarningNotFound
	}
	if w.Acknowledged {
		return false, nil
	}
	w.Acknowledged = true
	at = at.UTC()
	w.AcknowledgedAt = &at
	return true, nil
}

func copyWarning(w *Warning) *Warning {
	clone := *w
	if w.AcknowledgedAt != nil {
		t := *w.AcknowledgedAt
		clone.AcknowledgedAt = &t
	}
	return &clone
}
