package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Client on Redis. Each partition is one hash keyed by
// {prefix}:{table}:{partitionKey}; hash fields are sort keys and values are JSON documents.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a Redis document store. All keys are namespaced with prefix.
func NewRedisStore(opts *redis.Options, prefix string) (*RedisStore, error) {
	if prefix == "" {
		return nil, fmt.Errorf("key prefix cannot be empty")
	}
	return &RedisStore{
		rdb:    redis.NewClient(opts),
		prefix: prefix,
	}, nil
}

func (s *RedisStore) partitionKey(table, pk string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, table, pk)
}

// PutItem inserts or replaces an item.
func (s *RedisStore) PutItem(ctx context.Context, table string, key Key, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if err := s.rdb.HSet(ctx, s.partitionKey(table, key.PartitionKey), key.SortKey, data).Err(); err != nil {
		return storeError(OpPutItem, table, err, isRedisTransient)
	}
	return nil
}

// GetItem fetches a single item.
func (s *RedisStore) GetItem(ctx context.Context, table string, key Key) (Item, bool, error) {
	data, err := s.rdb.HGet(ctx, s.partitionKey(table, key.PartitionKey), key.SortKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, storeError(OpGetItem, table, err, isRedisTransient)
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, false, fmt.Errorf("failed to decode item %s/%s: %w", key.PartitionKey, key.SortKey, err)
	}
	return item, true, nil
}

// Query returns all items of a partition ordered by sort key.
func (s *RedisStore) Query(ctx context.Context, table, partitionKey string) ([]Item, error) {
	hash, err := s.rdb.HGetAll(ctx, s.partitionKey(table, partitionKey)).Result()
	if err != nil {
		return nil, storeError(OpQuery, table, err, isRedisTransient)
	}

	sortKeys := make([]string, 0, len(hash))
	for sk := range hash {
		sortKeys = append(sortKeys, sk)
	}
	sort.Strings(sortKeys)

	items := make([]Item, 0, len(sortKeys))
	for _, sk := range sortKeys {
		var item Item
		if err := json.Unmarshal([]byte(hash[sk]), &item); err != nil {
			return nil, fmt.Errorf("failed to decode item %s/%s: %w", partitionKey, sk, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// DeleteItem removes an item. Deleting a missing item is not an error.
func (s *RedisStore) DeleteItem(ctx context.Context, table string, key Key) error {
	if err := s.rdb.HDel(ctx, s.partitionKey(table, key.PartitionKey), key.SortKey).Err(); err != nil {
		return storeError(OpDeleteItem, table, err, isRedisTransient)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// isRedisTransient retries network failures and the server replies that clear up on their own.
// Other replies, such as WRONGTYPE, are permanent.
func isRedisTransient(err error) bool {
	var replyErr redis.Error
	if !errors.As(err, &replyErr) {
		return true
	}
	msg := replyErr.Error()
	for _, prefix := range []string{"LOADING", "READONLY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN", "BUSY"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
