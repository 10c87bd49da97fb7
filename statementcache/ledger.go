package statementcache

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-statement-cache/cache"
)

// Ledger tracks, per active transaction, which partitions have been
// invalidated and which entries have been tentatively written, and
// reconciles the shared store when the transaction completes. Without an
// ambient transaction every effect is applied to the store immediately.
//
// Deferring the visibility of transactional writes and invalidations to
// completion is what keeps the cache from becoming a side channel that
// bypasses transaction isolation: a put performed inside a transaction
// never becomes externally visible until it commits, and a partition
// invalidated inside a pending transaction is conservatively treated as
// dirty by every reader until the transaction's fate is known.
type Ledger struct {
	store  cache.Store
	logger zerolog.Logger

	// records holds one txRecord per live transaction, keyed by Tx.ID().
	records *xsync.MapOf[string, *txRecord]

	// dirty counts, per partition, how many live transactions hold a
	// pending invalidation on it. Any non-zero count forces lookups on
	// entries tagged with that partition to miss.
	dirty *xsync.MapOf[string, int64]
}

// txRecord is the per-transaction pending-effects record. It is owned by
// the ledger and mutated only on behalf of its own transaction handle.
type txRecord struct {
	mu          sync.Mutex
	invalidated []string
	seen        map[string]struct{}
	puts        []pendingPut
}

type pendingPut struct {
	key   string
	entry *cache.Entry
}

// NewLedger creates a ledger reconciling against the given store.
func NewLedger(store cache.Store, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		logger:  logger.With().Str("component", "ledger").Logger(),
		records: xsync.NewMapOf[string, *txRecord](),
		dirty:   xsync.NewMapOf[string, int64](),
	}
}

// record returns the pending-effects record for tx, creating it and
// registering the one-time completion hook on first interaction.
func (l *Ledger) record(tx Tx) *txRecord {
	id := tx.ID()
	rec, loaded := l.records.LoadOrCompute(id, func() *txRecord {
		return &txRecord{seen: make(map[string]struct{})}
	})
	if !loaded {
		// Hook registration happens exactly once per transaction, on the
		// goroutine that created the record.
		tx.OnComplete(func(committed bool) {
			l.complete(id, committed)
		})
	}
	return rec
}

// markDirty registers a pending invalidation on the partition.
func (l *Ledger) markDirty(partition string) {
	l.dirty.Compute(partition, func(old int64, _ bool) (int64, bool) {
		return old + 1, false
	})
}

// unmarkDirty drops one pending invalidation from the partition.
func (l *Ledger) unmarkDirty(partition string) {
	l.dirty.Compute(partition, func(old int64, loaded bool) (int64, bool) {
		if !loaded || old <= 1 {
			return 0, true
		}
		return old - 1, false
	})
}

// isDirty reports whether any live transaction holds a pending
// invalidation on any of the given tags.
func (l *Ledger) isDirty(tags []string) bool {
	for _, tag := range tags {
		if n, ok := l.dirty.Load(tag); ok && n > 0 {
			return true
		}
	}
	return false
}

// RecordInvalidation registers the invalidation of the given partitions.
// With no ambient transaction the store eviction is applied immediately and
// synchronously; inside a transaction the partitions join the pending set
// and the eviction is deferred to commit. Store failures degrade to
// pass-through rather than failing the statement.
func (l *Ledger) RecordInvalidation(ctx context.Context, tx Tx, partitions []string) {
	parts := normalizePartitions(partitions)
	if len(parts) == 0 {
		return
	}

	if tx == nil {
		for _, p := range parts {
			if err := l.store.RemoveByTag(ctx, p); err != nil {
				storeErrors.WithLabelValues("remove_by_tag").Inc()
				l.logger.Warn().Err(err).Str("partition", p).Msg("store eviction failed, degrading")
			}
		}
		cacheInvalidations.WithLabelValues("immediate").Add(float64(len(parts)))
		return
	}

	rec := l.record(tx)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, p := range parts {
		if _, ok := rec.seen[p]; ok {
			continue
		}
		rec.seen[p] = struct{}{}
		rec.invalidated = append(rec.invalidated, p)
		l.markDirty(p)
	}
	cacheInvalidations.WithLabelValues("deferred").Add(float64(len(parts)))
}

// RecordPut stores the entry, immediately without an ambient transaction or
// as a pending write inside one. Entries whose tags intersect a pending
// invalidation in any live transaction are skipped: they would be wiped at
// that transaction's commit anyway, and skipping them closes the window in
// which a racing commit could miss them.
func (l *Ledger) RecordPut(ctx context.Context, tx Tx, key string, entry *cache.Entry) {
	if l.isDirty(entry.Tags) {
		l.logger.Debug().Str("key", key).Msg("skipping put on pending-dirty partition")
		return
	}

	if tx == nil {
		if err := l.store.Put(ctx, key, entry); err != nil {
			storeErrors.WithLabelValues("put").Inc()
			l.logger.Warn().Err(err).Str("key", key).Msg("store put failed, degrading")
		}
		return
	}

	rec := l.record(tx)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.puts = append(rec.puts, pendingPut{key: key, entry: entry})
}

// Lookup returns the stored entry for key, or a miss when the key is
// absent, expired, or tagged with a partition whose invalidation is pending
// in any live transaction. The dirty rule intentionally covers the current
// transaction's own invalidations as well as concurrent ones: a transaction
// must not read a value it just invalidated, and a concurrent reader must
// not treat a partition as clean while another transaction's fate is
// unknown.
func (l *Ledger) Lookup(ctx context.Context, tx Tx, key string) (*cache.Entry, bool) {
	entry, ok, err := l.store.Get(ctx, key)
	if err != nil {
		storeErrors.WithLabelValues("get").Inc()
		l.logger.Warn().Err(err).Str("key", key).Msg("store get failed, treating as miss")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	if l.isDirty(entry.Tags) {
		l.logger.Debug().Str("key", key).Msg("forced miss on pending-dirty partition")
		return nil, false
	}

	return entry, true
}

// complete reconciles a finished transaction against the store. On commit
// every recorded partition is evicted exactly once and the pending writes
// are inserted; on rollback everything is discarded with no store mutation.
// Dirty marks are dropped only after the store is clean so concurrent
// readers stay conservative throughout.
func (l *Ledger) complete(txID string, committed bool) {
	rec, ok := l.records.LoadAndDelete(txID)
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if committed {
		for _, p := range rec.invalidated {
			if err := l.store.RemoveByTag(context.Background(), p); err != nil {
				storeErrors.WithLabelValues("remove_by_tag").Inc()
				l.logger.Warn().Err(err).Str("partition", p).Msg("commit-time eviction failed")
			}
		}
	}

	for _, p := range rec.invalidated {
		l.unmarkDirty(p)
	}

	if committed {
		for _, put := range rec.puts {
			if l.isDirty(put.entry.Tags) {
				continue
			}
			if err := l.store.Put(context.Background(), put.key, put.entry); err != nil {
				storeErrors.WithLabelValues("put").Inc()
				l.logger.Warn().Err(err).Str("key", put.key).Msg("commit-time put failed")
			}
		}
	}

	l.logger.Debug().
		Str("tx", txID).
		Bool("committed", committed).
		Int("invalidated", len(rec.invalidated)).
		Int("pending_puts", len(rec.puts)).
		Msg("transaction reconciled")
}
