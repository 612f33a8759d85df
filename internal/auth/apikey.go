package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// ErrUnknownAPIKey is returned for keys that are not registered.
var ErrUnknownAPIKey = errors.New("unknown api key")

const apiKeyPrefix = "apikey:"

// RedisKeyStore validates API keys stored in Redis as hashes at apikey:{sha256(key)} with
// tenant_id and user_id fields. Positive lookups are cached for the configured TTL.
type RedisKeyStore struct {
	rdb   *redis.Client
	cache *ttlcache.Cache[string, Identity]
}

// NewRedisKeyStore creates a key store. Close stops the cache janitor.
func NewRedisKeyStore(rdb *redis.Client, cacheTTL time.Duration) *RedisKeyStore {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, Identity](cacheTTL),
	)
	go cache.Start()

	return &RedisKeyStore{rdb: rdb, cache: cache}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Validate resolves key to its identity.
func (s *RedisKeyStore) Validate(ctx context.Context, key string) (Identity, error) {
	h := hashKey(key)
	if item := s.cache.Get(h); item != nil {
		return item.Value(), nil
	}

	fields, err := s.rdb.HGetAll(ctx, apiKeyPrefix+h).Result()
	if err != nil {
		return Identity{}, fmt.Errorf("api key lookup failed: %w", err)
	}
	if len(fields) == 0 {
		return Identity{}, ErrUnknownAPIKey
	}

	id := Identity{TenantID: fields["tenant_id"], UserID: fields["user_id"]}
	if id.TenantID == "" || id.UserID == "" {
		return Identity{}, fmt.Errorf("api key record is incomplete")
	}

	s.cache.Set(h, id, ttlcache.DefaultTTL)
	return id, nil
}

// Register stores a key for tenantID and userID. Only the key's hash is persisted.
func (s *RedisKeyStore) Register(ctx context.Context, key, tenantID, userID string) error {
	if key == "" || tenantID == "" || userID == "" {
		return errors.New("key, tenant id and user id are required")
	}
	return s.rdb.HSet(ctx, apiKeyPrefix+hashKey(key),
		"tenant_id", tenantID,
		"user_id", userID,
		"created_at", time.Now().UTC().Format(time.RFC3339),
	).Err()
}

// Revoke removes a key and drops it from the cache.
func (s *RedisKeyStore) Revoke(ctx context.Context, key string) error {
	h := hashKey(key)
	s.cache.Delete(h)
	return s.rdb.Del(ctx, apiKeyPrefix+h).Err()
}

func (s *RedisKeyStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisKeyStore) Close() {
	s.cache.Stop()
}
