package cache

import (
	"context"
	"time"
)

// Entry wraps a Result together with the metadata the store needs for
// tag-based eviction and expiration.
type Entry struct {
	// Result is the cached statement outcome.
	Result *Result `msgpack:"result" json:"result"`

	// Tags lists the partitions the result was derived from. RemoveByTag
	// evicts every entry carrying the tag.
	Tags []string `msgpack:"tags" json:"tags"`

	// Sliding is the inactivity window after which the entry expires.
	// Zero disables sliding expiration.
	Sliding time.Duration `msgpack:"sliding" json:"sliding"`

	// Absolute is the hard deadline after which the entry expires
	// regardless of access. Zero disables the deadline.
	Absolute time.Time `msgpack:"absolute" json:"absolute"`
}

// HasTag reports whether the entry carries the given partition tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Store is the shared cache backend the coordination layer writes through.
// Implementations own expiration: Get must never return an expired entry.
type Store interface {
	// Get returns the entry stored under key, or ok=false on a miss.
	// A successful read counts as a touch for sliding expiration.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Put stores the entry under key, replacing any previous entry.
	Put(ctx context.Context, key string, entry *Entry) error

	// RemoveByTag evicts every entry tagged with the given partition.
	RemoveByTag(ctx context.Context, tag string) error
}
