package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationList is an optional deny-list of token IDs (jti) that must no
// longer authenticate even though their signature and expiry still verify.
// Entries only need to live for the token's remaining TTL; after natural
// expiry the codec rejects the token anyway.
type RevocationList interface {
	// Revoke marks a token ID as revoked for the given retention period.
	Revoke(ctx context.Context, tokenID string, retention time.Duration) error

	// IsRevoked reports whether a token ID has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocationList is an in-process RevocationList for tests and
// single-instance deployments without Redis.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time // token ID -> entry expiry
}

// NewMemoryRevocationList creates an empty in-memory deny-list
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
	}
}

// Revoke marks a token ID as revoked until its retention elapses
func (l *MemoryRevocationList) Revoke(ctx context.Context, tokenID string, retention time.Duration) error {
	if tokenID == "" || retention <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[tokenID] = time.Now().Add(retention)
	return nil
}

// IsRevoked reports whether the token ID is on the deny-list. Expired
// entries are purged lazily.
func (l *MemoryRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.entries[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(l.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Purge removes all expired entries, bounding memory between requests.
// Called periodically by the maintenance job.
func (l *MemoryRevocationList) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, expiry := range l.entries {
		if now.After(expiry) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}
