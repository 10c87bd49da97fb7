// Package cacheinfra provides the Store backends used by the statement
// cache: an in-process implementation on top of sturdyc and a shared
// implementation on top of redis.
package cacheinfra

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-statement-cache/cache"
)

// storedEntry wraps a cache.Entry with the last-touch timestamp needed for
// sliding expiration. lastTouch holds unix nanoseconds.
type storedEntry struct {
	entry     *cache.Entry
	lastTouch atomic.Int64
}

func (s *storedEntry) expired(now time.Time) bool {
	if !s.entry.Absolute.IsZero() && now.After(s.entry.Absolute) {
		return true
	}
	if s.entry.Sliding > 0 {
		touched := time.Unix(0, s.lastTouch.Load())
		if now.Sub(touched) > s.entry.Sliding {
			return true
		}
	}
	return false
}

// SturdycStore implements cache.Store on top of a sturdyc client.
// Tag-based eviction scans the key space, mirroring how prefix
// invalidation works against sturdyc; per-entry sliding and absolute
// expiration are layered over the client TTL.
type SturdycStore struct {
	client *sturdyc.Client[*storedEntry]
	logger zerolog.Logger
}

// NewSturdycStore creates a new in-memory store backend.
// It validates the configuration and initializes a sturdyc client with the
// provided settings.
//
// Version compatibility note: this implementation assumes sturdyc v1.x API.
func NewSturdycStore(cfg Config, logger zerolog.Logger) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[*storedEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		opts...,
	)

	return &SturdycStore{
		client: client,
		logger: logger.With().Str("component", "sturdyc_store").Logger(),
	}, nil
}

// Get implements cache.Store.Get. Expired entries are dropped on read and
// reported as misses; a successful read refreshes the sliding window.
func (s *SturdycStore) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	stored, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}

	now := time.Now()
	if stored.expired(now) {
		s.client.Delete(key)
		s.logger.Debug().Str("key", key).Msg("entry expired on read")
		return nil, false, nil
	}

	stored.lastTouch.Store(now.UnixNano())
	return stored.entry, true, nil
}

// Put implements cache.Store.Put.
func (s *SturdycStore) Put(ctx context.Context, key string, entry *cache.Entry) error {
	stored := &storedEntry{entry: entry}
	stored.lastTouch.Store(time.Now().UnixNano())
	s.client.Set(key, stored)
	return nil
}

// RemoveByTag implements cache.Store.RemoveByTag. It evicts every entry
// carrying the tag, scanning the key space the same way prefix-based
// invalidation does.
func (s *SturdycStore) RemoveByTag(ctx context.Context, tag string) error {
	removed := 0
	for _, key := range s.client.ScanKeys() {
		stored, ok := s.client.Get(key)
		if !ok {
			continue
		}
		if stored.entry.HasTag(tag) {
			s.client.Delete(key)
			removed++
		}
	}

	s.logger.Debug().Str("tag", tag).Int("removed", removed).Msg("evicted entries by tag")
	return nil
}
