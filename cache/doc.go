// Package cache provides the key derivation and storage contracts for
// statement result caching.
//
// # Overview
//
// This package exports the leaf types shared by the coordination layer and
// the store backends:
//
//   - KeyBuilder: derives a deterministic cache key from connection identity,
//     statement text and the ordered parameter sequence
//   - Store: the shared tagged key-value backend with sliding and absolute
//     expiration
//   - Result / Entry: the materialized statement outcome and its storage
//     envelope
//
// # Key Derivation Strategy
//
// The default key builder serializes every parameter value in a stable,
// type-tagged textual form, length-prefixes each key segment, and digests
// the canonical string with xxhash:
//
//	builder := cache.NewDefaultKeyBuilder()
//	key, err := builder.Build("pg://orders-db", "SELECT * FROM orders WHERE id = @id",
//		[]cache.Param{{Name: "id", Value: 42}})
//
// Two statements against different connection identities can never collide,
// and equal values always format identically:
//
//   - Basic types carry a kind tag (int:42 is distinct from string:42)
//   - Floats use shortest round-trip formatting
//   - time.Time normalizes to UTC RFC3339Nano
//   - Maps serialize with sorted keys; slices and structs recurse
//
// # Store Contract
//
// Store implementations own expiration: Get never returns an expired entry,
// and a successful Get counts as a touch for sliding expiration. RemoveByTag
// evicts every entry tagged with a partition; this is deliberately the
// coarser eviction granularity, trading false misses for guaranteed absence
// of stale hits.
//
// # See Also
//
// For the transaction-aware coordination protocol built on these types, see
// the statementcache package. For the sturdyc and redis backed Store
// implementations, see internal/cacheinfra (wired through pkg/di).
package cache
