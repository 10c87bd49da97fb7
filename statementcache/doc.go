// Package statementcache provides a transactional, invalidation-aware
// result cache that sits between a query executor and a data store.
//
// # Overview
//
// For any executed statement the Coordinator decides whether the result can
// be served from or saved to a shared cache, keyed by statement text,
// parameters and connection identity, while respecting the visibility rules
// of database transactions: results written inside an uncommitted
// transaction never leak to other transactions, and an invalidation caused
// by a write atomically and eventually wipes every cache entry that could
// depend on the modified data.
//
// The package is built from three cooperating pieces:
//
//   - LockManager: per-partition exclusive gates serializing conflicting
//     cache reads, writes and invalidations
//   - Ledger: per-transaction pending invalidations and tentative writes,
//     reconciled against the shared store on commit or rollback
//   - Coordinator: the public entry point running the statement execution
//     protocol and orchestrating the other two
//
// # Basic Usage
//
// Wire the coordinator with your collaborators and a store backend:
//
//	store, _ := di.NewContainerWithDefaults()
//	coord := statementcache.New(executor, factsProvider, policy, registry, store.Store())
//
//	rows, err := coord.QueryRows(ctx, statementcache.Statement{
//		ConnID: "pg://orders",
//		Text:   "SELECT * FROM orders WHERE region = @region",
//		Params: []cache.Param{{Name: "region", Value: "eu"}},
//	}, nil)
//
// Statements executed inside a database transaction pass the transaction
// handle; its cache effects are deferred until the host delivers the
// completion event:
//
//	rows, err := coord.QueryRows(ctx, stmt, txHandle)
//
// # Execution Protocol
//
// Per statement the coordinator runs START -> LOCKED -> {HIT,
// MISS_EXECUTING} -> DONE:
//
//  1. Non-read statements lock their partitions, record the invalidation,
//     release, then execute. Invalidate-then-execute guarantees no reader
//     can observe an entry for data about to change.
//  2. Cacheable reads build the key, lock the partitions and consult the
//     ledger. A hit returns a fresh read-only cursor over the stored rows.
//     A miss executes and eagerly materializes rows while the lock is held,
//     releases it, then applies the caching decision and stores the entry.
//  3. Non-cacheable reads delegate straight through with no lock, no key
//     and no store interaction.
//
// Scalar statements follow the same hit/miss logic storing a single value.
//
// # Transactions
//
// Inside a transaction both puts and invalidations are pending effects held
// by the Ledger. While any transaction holds a pending invalidation on a
// partition, every lookup touching that partition misses; this conservative
// dirty rule favors false misses over stale hits. Commit applies evictions
// exactly once per partition, then inserts pending writes; rollback
// discards everything without touching the store.
//
// # Failure Semantics
//
// Lock tokens are released on every exit path. Executor errors propagate
// unchanged with no cache mutation. Store failures degrade to pass-through:
// reads become misses, puts and evictions are skipped, and the caller
// always gets the result it would have gotten without caching.
package statementcache
