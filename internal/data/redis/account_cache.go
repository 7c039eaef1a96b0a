// Package redis caches the account projection for the hot RFID read path.
// The cache is never authoritative: every balance or expiry write goes to
// Postgres and invalidates the cached copy.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netvend-ledger/internal/domain/account"
)

const keyPrefix = "account:"

// Cmdable is the slice of the redis client the cache needs
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AccountCache is a read-through cache for account projections keyed by the
// RFID tag string
type AccountCache struct {
	client Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewAccountCache creates a new account cache with the given TTL
func NewAccountCache(logger *slog.Logger, client Cmdable, ttl time.Duration) *AccountCache {
	return &AccountCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached account or nil on a miss. Cache failures degrade
// to a miss; the caller falls back to the store.
func (c *AccountCache) Get(ctx context.Context, userID string) (*account.Account, error) {
	payload, err := c.client.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Warn("Account cache read failed", "user_id", userID, "error", err)
		return nil, nil
	}

	var acc account.Account
	if err := json.Unmarshal(payload, &acc); err != nil {
		c.logger.Warn("Account cache entry corrupt, dropping", "user_id", userID, "error", err)
		_ = c.client.Del(ctx, keyPrefix+userID).Err()
		return nil, nil
	}

	return &acc, nil
}

// Set stores the account projection under its TTL
func (c *AccountCache) Set(ctx context.Context, acc *account.Account) error {
	payload, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account for cache: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+acc.UserID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache account: %w", err)
	}

	return nil
}

// Invalidate drops the cached projection after a balance or expiry write
func (c *AccountCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached account: %w", err)
	}
	return nil
}
