package members

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation used by tests and by
// standalone runs that do not configure a database.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[int64]*Member
	nextID  int64
}

// NewMemoryStore creates an empty in-memory member store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[int64]*Member),
		nextID:  1,
	}
}

// FindByID returns the member with the given identifier
func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMember(m), nil
}

// FindByNameOrEmail returns all matching members ordered by ascending ID
func (s *MemoryStore) FindByNameOrEmail(ctx context.Context, key string) ([]*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Member
	for id := int64(1); id < s.nextID; id++ {
		m, ok := s.members[id]
		if !ok {
			continue
		}
		if m.Name == key || m.Email == key {
			result = append(result, copyMember(m))
		}
	}
	return result, nil
}

// Create persists a new member and assigns its ID
func (s *MemoryStore) Create(ctx context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	m.ID = s.nextID
	m.CreatedAt = now
	m.UpdatedAt = now
	s.nextID++
	s.members[m.ID] = copyMember(m)
	return nil
}

// Update persists changes to an existing member
func (s *MemoryStore) Update(ctx context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.ID]; !ok {
		return ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	s.members[m.ID] = copyMember(m)
	return nil
}

// ExistsByName reports whether a member with the given name exists
func (s *MemoryStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members {
		if m.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// ExistsByEmail reports whether a member with the given email exists
func (s *MemoryStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members {
		if m.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// IncrementWarningCount atomically increments and returns the warning counter.
// The store mutex serializes concurrent increments.
func (s *MemoryStore) IncrementWarningCount(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return 0, ErrNotFound
	}
	m.WarningCount++
	m.UpdatedAt = time.Now().UTC()
	return m.WarningCount, nil
}

// SetBan transitions the member to banned state exactly once
func (s *MemoryStore) SetBan(ctx context.Context, id int64, reason string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return false, ErrNotFound
	}
	if m.Banned {
		return false, nil
	}
	m.Banned = true
	m.BanReason = reason
	m.BanExpiresAt = &expiresAt
	m.UpdatedAt = time.Now().UTC()
	return true, nil
}

// LiftExpiredBans clears expired bans and returns the number lifted
func (s *MemoryStore) LiftExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lifted int64
	for _, m := range s.members {
		if m.Banned && m.BanExpiresAt != nil && !now.Before(*m.BanExpiresAt) {
			m.Banned = false
			m.BanReason = ""
			m.BanExpiresAt = nil
			m.UpdatedAt = time.Now().UTC()
			lifted++
		}
	}
	return lifted, nil
}

func copyMember(m *Member) *Member {
	clone := *m
	if m.BanExpiresAt != nil {
		t := *m.BanExpiresAt
		clone.BanExpiresAt = &t
	}
	clone.Roles = append([]string(nil), m.Roles...)
	return &clone
}
