package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
)

const revocationKeyPrefix = "parley:revoked:"

// RedisRevocationList is a Redis-backed RevocationList with an in-process
// LRU front. Redis entries carry the token's remaining TTL so retention is
// bounded without a cleanup job. The LRU caches only positive results:
// revocation is one-way until expiry, so a cached "revoked" can never go
// stale.
type RedisRevocationList struct {
	client *redis.Client
	known  *lru.Cache[string, struct{}]
}

// NewRedisRevocationList creates a Redis-backed deny-list and verifies
// connectivity.
func NewRedisRevocationList(client *redis.Client, cacheSize int) (*RedisRevocationList, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}

	known, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create revocation cache: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRevocationList{
		client: client,
		known:  known,
	}, nil
}

// Revoke marks a token ID as revoked for its remaining TTL
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, retention time.Duration) error {
	if tokenID == "" || retention <= 0 {
		return nil
	}

	if err := l.client.Set(ctx, revocationKeyPrefix+tokenID, "1", retention).Err(); err != nil {
		return fmt.Errorf("failed to record revocation: %w", err)
	}
	l.known.Add(tokenID, struct{}{})
	return nil
}

// IsRevoked reports whether the token ID is on the deny-list
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if _, ok := l.known.Get(tokenID); ok {
		return true, nil
	}

	n, err := l.client.Exists(ctx, revocationKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("revocation lookup failed: %w", err)
	}
	if n > 0 {
		l.known.Add(tokenID, struct{}{})
		return true, nil
	}
	return false, nil
}
