package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-statement-cache/cache"
)

// tagKeyPrefix namespaces the per-tag membership sets in redis.
const tagKeyPrefix = "stmt-tag::"

// RedisStore implements cache.Store against a shared redis backend.
// Entries are msgpack-encoded; tag membership is tracked with redis sets so
// RemoveByTag needs no key space scan. Sliding expiration maps onto the
// redis key TTL, refreshed on every read; the absolute deadline travels
// inside the encoded entry and is enforced on read.
type RedisStore struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(rdb *redis.Client, logger zerolog.Logger) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("cacheinfra: redis client is nil")
	}
	return &RedisStore{
		rdb:    rdb,
		logger: logger.With().Str("component", "redis_store").Logger(),
	}, nil
}

// effectiveTTL derives the redis key TTL from the entry's expiration policy.
// The key honors whichever bound fires first.
func effectiveTTL(entry *cache.Entry, now time.Time) time.Duration {
	ttl := time.Duration(0)
	if entry.Sliding > 0 {
		ttl = entry.Sliding
	}
	if !entry.Absolute.IsZero() {
		untilDeadline := entry.Absolute.Sub(now)
		if ttl == 0 || untilDeadline < ttl {
			ttl = untilDeadline
		}
	}
	return ttl
}

// Get implements cache.Store.Get.
func (s *RedisStore) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry cache.Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		// Corrupted entries are dropped rather than surfaced.
		_ = s.rdb.Del(ctx, key).Err()
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}

	if !entry.Absolute.IsZero() && time.Now().After(entry.Absolute) {
		_ = s.rdb.Del(ctx, key).Err()
		return nil, false, nil
	}

	if entry.Sliding > 0 {
		// Touch: slide the redis TTL forward.
		if err := s.rdb.Expire(ctx, key, entry.Sliding).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to slide entry ttl")
		}
	}

	return &entry, true, nil
}

// Put implements cache.Store.Put.
func (s *RedisStore) Put(ctx context.Context, key string, entry *cache.Entry) error {
	now := time.Now()
	ttl := effectiveTTL(entry, now)
	if !entry.Absolute.IsZero() && ttl <= 0 {
		// Already past the deadline, nothing to store.
		return nil
	}

	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	for _, tag := range entry.Tags {
		if err := s.rdb.SAdd(ctx, tagKeyPrefix+tag, key).Err(); err != nil {
			return fmt.Errorf("redis sadd tag %q: %w", tag, err)
		}
	}

	return nil
}

// RemoveByTag implements cache.Store.RemoveByTag.
func (s *RedisStore) RemoveByTag(ctx context.Context, tag string) error {
	tagKey := tagKeyPrefix + tag

	keys, err := s.rdb.SMembers(ctx, tagKey).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}

	if len(keys) > 0 {
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del tagged keys: %w", err)
		}
	}

	if err := s.rdb.Del(ctx, tagKey).Err(); err != nil {
		return fmt.Errorf("redis del tag set: %w", err)
	}

	s.logger.Debug().Str("tag", tag).Int("removed", len(keys)).Msg("evicted entries by tag")
	return nil
}
