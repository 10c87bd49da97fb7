package cacheinfra

import (
	"context"
	"database/sql/driver"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-statement-cache/cache"
)

// newRedisStore connects to the redis instance named by REDIS_ADDR and skips
// the test when none is available.
func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis store tests")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis at %s not reachable: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := NewRedisStore(rdb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	return store
}

func TestNewRedisStore_NilClient(t *testing.T) {
	if _, err := NewRedisStore(nil, zerolog.Nop()); err == nil {
		t.Error("NewRedisStore(nil) error = nil, want error")
	}
}

func TestEffectiveTTL(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		entry *cache.Entry
		want  time.Duration
	}{
		{
			name:  "sliding only",
			entry: &cache.Entry{Sliding: time.Minute},
			want:  time.Minute,
		},
		{
			name:  "absolute only",
			entry: &cache.Entry{Absolute: now.Add(30 * time.Second)},
			want:  30 * time.Second,
		},
		{
			name:  "absolute sooner than sliding",
			entry: &cache.Entry{Sliding: time.Minute, Absolute: now.Add(10 * time.Second)},
			want:  10 * time.Second,
		},
		{
			name:  "sliding sooner than absolute",
			entry: &cache.Entry{Sliding: 5 * time.Second, Absolute: now.Add(time.Hour)},
			want:  5 * time.Second,
		},
		{
			name:  "no policy",
			entry: &cache.Entry{},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := effectiveTTL(tt.entry, now)
			// Allow rounding slack on deadline-derived values.
			if got < tt.want-time.Millisecond || got > tt.want+time.Millisecond {
				t.Errorf("effectiveTTL() = %v, want ~%v", got, tt.want)
			}
		})
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	key := "test-" + uuid.NewString()
	entry := &cache.Entry{
		Result: &cache.Result{
			Kind:    cache.KindRows,
			Columns: []string{"id"},
			Rows:    [][]driver.Value{{int64(7)}},
		},
		Tags:     []string{"Orders"},
		Absolute: time.Now().Add(time.Minute),
	}

	if err := store.Put(ctx, key, entry); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	defer store.RemoveByTag(ctx, "Orders")

	got, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want hit")
	}
	if got.Result.Kind != cache.KindRows || got.Result.RowCount() != 1 {
		t.Errorf("round trip lost the result: %+v", got.Result)
	}

	if err := store.RemoveByTag(ctx, "Orders"); err != nil {
		t.Fatalf("RemoveByTag() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, key); ok {
		t.Error("entry survived RemoveByTag")
	}
}
