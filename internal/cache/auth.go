package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/remoteprint/remoteprint/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
	// authNegPrefix marks key hashes that recently failed lookup.
	authNegPrefix = "auth:neg:"
	// authNegTTL bounds how long an unknown key hash is remembered.
	authNegTTL = time.Minute
	// authRevPrefix marks key hashes revoked while entries may still be cached.
	authRevPrefix = "auth:rev:"
	// authRevTTL outlives any auth context written by a lookup that raced
	// the revocation.
	authRevTTL = 2 * authCacheTTL
)

// CachedAuthContext represents auth context stored in Redis.
type CachedAuthContext struct {
	KeyID     string   `json:"key_id"`
	KeyPrefix string   `json:"key_prefix"`
	AccountID string   `json:"account_id"`
	Scopes    []string `json:"scopes"`
	PlanID    string   `json:"plan_id"`
}

// GetAuthContext retrieves a cached auth context by key hash.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, keyHash string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+keyHash).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached CachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		KeyID:     cached.KeyID,
		KeyPrefix: cached.KeyPrefix,
		AccountID: cached.AccountID,
		Scopes:    cached.Scopes,
		PlanID:    model.PlanID(cached.PlanID),
	}, nil
}

// SetAuthContext caches an auth context under the key hash.
func (c *Cache) SetAuthContext(ctx context.Context, keyHash string, auth *model.AuthContext) error {
	data, err := encodeAuthContext(auth)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, authCachePrefix+keyHash, data, authCacheTTL).Err()
}

// DeleteAuthContext removes a cached auth context.
// Used when a key is revoked.
func (c *Cache) DeleteAuthContext(ctx context.Context, keyHash string) error {
	return c.client.Del(ctx, authCachePrefix+keyHash).Err()
}

// MarkKeyUnknown remembers that keyHash matched no active key.
func (c *Cache) MarkKeyUnknown(ctx context.Context, keyHash string) error {
	return c.client.Set(ctx, authNegPrefix+keyHash, "1", authNegTTL).Err()
}

// IsKeyUnknown reports whether keyHash recently matched no active key.
// Redis errors report false so lookups fall through to the database.
func (c *Cache) IsKeyUnknown(ctx context.Context, keyHash string) bool {
	err := c.client.Get(ctx, authNegPrefix+keyHash).Err()
	return err == nil
}

// ClearKeyUnknown drops the negative entry, used when a key is created.
func (c *Cache) ClearKeyUnknown(ctx context.Context, keyHash string) error {
	return c.client.Del(ctx, authNegPrefix+keyHash).Err()
}

// MarkKeyRevoked records that keyHash was revoked. Cached auth contexts for
// the hash must be ignored while the marker lives.
func (c *Cache) MarkKeyRevoked(ctx context.Context, keyHash string) error {
	return c.client.Set(ctx, authRevPrefix+keyHash, "1", authRevTTL).Err()
}

// IsKeyRevoked reports whether keyHash carries a revocation marker.
func (c *Cache) IsKeyRevoked(ctx context.Context, keyHash string) (bool, error) {
	err := c.client.Get(ctx, authRevPrefix+keyHash).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("check revoked marker: %w", err)
	}
}

func encodeAuthContext(auth *model.AuthContext) ([]byte, error) {
	cached := CachedAuthContext{
		KeyID:     auth.KeyID,
		KeyPrefix: auth.KeyPrefix,
		AccountID: auth.AccountID,
		Scopes:    auth.Scopes,
		PlanID:    string(auth.PlanID),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return nil, fmt.Errorf("marshal auth context: %w", err)
	}
	return data, nil
}
