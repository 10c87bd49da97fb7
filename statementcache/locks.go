package statementcache

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// LockManager grants mutually-exclusive access over sets of logical
// partitions. Granularity is per-partition, not per-key: all cache
// interactions on a partition serialize, trading some false contention for
// a coherency guarantee that is simple to reason about. There is one gate
// per distinct partition seen, never a single global lock.
type LockManager struct {
	gates *xsync.MapOf[string, chan struct{}]
}

// NewLockManager creates an empty lock manager. Partition gates are created
// lazily on first acquisition.
func NewLockManager() *LockManager {
	return &LockManager{
		gates: xsync.NewMapOf[string, chan struct{}](),
	}
}

// Token represents held access over one partition set for the duration of
// one statement's cache interaction. It must be released exactly once.
type Token struct {
	id         string
	partitions []string
	lm         *LockManager
	released   atomic.Bool
}

// ID returns the token's unique identifier.
func (t *Token) ID() string { return t.id }

// Partitions returns the partitions held by the token.
func (t *Token) Partitions() []string {
	return append([]string(nil), t.partitions...)
}

func (lm *LockManager) gate(partition string) chan struct{} {
	g, _ := lm.gates.LoadOrCompute(partition, func() chan struct{} {
		return make(chan struct{}, 1)
	})
	return g
}

// Acquire blocks until it holds exclusive access to every named partition
// and returns a token. Partitions are deduplicated and locked in sorted
// order so overlapping acquisitions can never deadlock. On cancellation or
// timeout every partition acquired so far is unwound before the error is
// reported.
func (lm *LockManager) Acquire(ctx context.Context, partitions []string) (*Token, error) {
	parts := normalizePartitions(partitions)

	start := time.Now()
	for i, p := range parts {
		g := lm.gate(p)
		select {
		case g <- struct{}{}:
		case <-ctx.Done():
			// Unwind in reverse so no partial acquisition state survives.
			for j := i - 1; j >= 0; j-- {
				<-lm.gate(parts[j])
			}
			return nil, &LockAcquisitionError{Partition: p, Cause: ctx.Err()}
		}
	}
	lockWaitSeconds.Observe(time.Since(start).Seconds())

	return &Token{
		id:         uuid.NewString(),
		partitions: parts,
		lm:         lm,
	}, nil
}

// Release frees every partition held by the token. Releasing a token twice
// is a caller error and is reported.
func (lm *LockManager) Release(t *Token) error {
	if t == nil {
		return ErrNilToken
	}
	if t.released.Swap(true) {
		return fmt.Errorf("%w: token %s", ErrTokenReleased, t.id)
	}

	for i := len(t.partitions) - 1; i >= 0; i-- {
		<-lm.gate(t.partitions[i])
	}
	return nil
}

// normalizePartitions deduplicates and sorts a partition set. Sorted order
// is what makes multi-partition acquisition deadlock-free.
func normalizePartitions(partitions []string) []string {
	if len(partitions) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(partitions))
	out := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
