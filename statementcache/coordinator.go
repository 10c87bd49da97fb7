package statementcache

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-statement-cache/cache"
)

// shape discriminates the three statement entry points. One protocol
// function consumes it so the invalidate/cache protocol lives in exactly
// one place and the shapes cannot drift apart.
type shape int

const (
	shapeRows shape = iota
	shapeScalar
	shapeNonQuery
)

// outcome is the tagged result of one protocol run.
type outcome struct {
	rows     Rows
	scalar   driver.Value
	affected int64
}

// Coordinator is the public entry point of the statement cache, invoked
// once per statement execution. It orchestrates key derivation, partition
// locking, the transaction ledger and the shared store to implement the
// read, write/invalidate and caching-decision paths. The cache is
// transparent to the caller's contract: every entry point returns exactly
// the shape the executor would have returned directly.
type Coordinator struct {
	executor Executor
	facts    FactsProvider
	policy   Policy
	registry Registry
	keys     cache.KeyBuilder
	locks    *LockManager
	ledger   *Ledger
	logger   zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger. The ledger inherits it.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithKeyBuilder overrides the default key builder.
func WithKeyBuilder(kb cache.KeyBuilder) Option {
	return func(c *Coordinator) {
		c.keys = kb
	}
}

// New creates a Coordinator over the given collaborators and store. The
// registries are explicit configuration, not process-wide state: two
// coordinators never share forced or blacklisted statement lists unless
// handed the same Registry.
func New(executor Executor, facts FactsProvider, policy Policy, registry Registry, store cache.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		executor: executor,
		facts:    facts,
		policy:   policy,
		registry: registry,
		keys:     cache.NewDefaultKeyBuilder(),
		locks:    NewLockManager(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "coordinator").Logger()
	c.ledger = NewLedger(store, c.logger)
	return c
}

// Ledger exposes the coordinator's transaction ledger, mainly so hosts can
// verify reconciliation behavior.
func (c *Coordinator) Ledger() *Ledger { return c.ledger }

// QueryRows executes a row-returning statement through the cache. On a hit
// the returned cursor replays the rows captured at storage time, in order,
// independent of the live executor.
func (c *Coordinator) QueryRows(ctx context.Context, stmt Statement, tx Tx) (Rows, error) {
	out, err := c.execute(ctx, stmt, tx, shapeRows)
	if err != nil {
		return nil, err
	}
	return out.rows, nil
}

// QueryScalar executes a scalar-returning statement through the cache.
func (c *Coordinator) QueryScalar(ctx context.Context, stmt Statement, tx Tx) (driver.Value, error) {
	out, err := c.execute(ctx, stmt, tx, shapeScalar)
	if err != nil {
		return nil, err
	}
	return out.scalar, nil
}

// ExecNonQuery executes a non-query statement, returning the affected-row
// count. Write statements invalidate their partitions before the executor
// runs.
func (c *Coordinator) ExecNonQuery(ctx context.Context, stmt Statement, tx Tx) (int64, error) {
	out, err := c.execute(ctx, stmt, tx, shapeNonQuery)
	if err != nil {
		return 0, err
	}
	return out.affected, nil
}

// execute is the single statement execution protocol:
// START -> LOCKED -> {HIT, MISS_EXECUTING} -> DONE, with failure reachable
// from any state. Held lock tokens are released on every exit path.
func (c *Coordinator) execute(ctx context.Context, stmt Statement, tx Tx, sh shape) (outcome, error) {
	if stmt.Text == "" {
		return outcome{}, cache.ErrEmptyStatement
	}

	facts, err := c.facts.Facts(ctx, stmt)
	if err != nil {
		return outcome{}, fmt.Errorf("statement facts: %w", err)
	}
	if extra := partitionsFromContext(ctx); len(extra) > 0 {
		facts.Partitions = normalizePartitions(append(facts.Partitions, extra...))
	}

	if !facts.IsQuery {
		return c.executeWrite(ctx, stmt, tx, sh, facts)
	}

	cacheable, err := c.decide(ctx, stmt, facts)
	if err != nil {
		return outcome{}, err
	}
	if !cacheable || sh == shapeNonQuery {
		// Straight delegation: no key, no lock, no store interaction.
		return c.delegate(ctx, stmt, sh)
	}

	key, err := c.keys.Build(stmt.ConnID, stmt.Text, stmt.Params)
	if err != nil {
		return outcome{}, err
	}

	token, err := c.locks.Acquire(ctx, facts.Partitions)
	if err != nil {
		return outcome{}, err
	}

	if entry, ok := c.ledger.Lookup(ctx, tx, key); ok && entry.Result.Kind == wantKind(sh) {
		if relErr := c.locks.Release(token); relErr != nil {
			return outcome{}, relErr
		}
		cacheHits.Inc()
		c.logger.Debug().Str("key", key).Msg("cache hit")
		return snapshotOutcome(entry.Result, sh), nil
	}

	// MISS_EXECUTING: the lock stays held across the delegated execution
	// through full materialization, never released early.
	result, err := c.executeMiss(ctx, stmt, sh)
	if err != nil {
		if relErr := c.locks.Release(token); relErr != nil {
			c.logger.Error().Err(relErr).Msg("release after executor failure")
		}
		return outcome{}, err
	}
	if err := c.locks.Release(token); err != nil {
		return outcome{}, err
	}

	cacheMisses.Inc()
	c.maybeStore(ctx, stmt, tx, key, facts, result, sh)

	return snapshotOutcome(result, sh), nil
}

// executeWrite implements the invalidate-then-execute ordering for non-read
// statements: the partitions are locked and invalidated before the write
// runs, so no reader that comes after can observe an entry for data about
// to change. Any reader racing in during the window is forced to treat the
// partitions as dirty.
func (c *Coordinator) executeWrite(ctx context.Context, stmt Statement, tx Tx, sh shape, facts Facts) (outcome, error) {
	token, err := c.locks.Acquire(ctx, facts.Partitions)
	if err != nil {
		return outcome{}, err
	}
	c.ledger.RecordInvalidation(ctx, tx, facts.Partitions)
	if err := c.locks.Release(token); err != nil {
		return outcome{}, err
	}

	return c.delegate(ctx, stmt, sh)
}

// delegate executes the statement directly, returning the executor's result
// unchanged.
func (c *Coordinator) delegate(ctx context.Context, stmt Statement, sh shape) (outcome, error) {
	switch sh {
	case shapeRows:
		rows, err := c.executor.Query(ctx, stmt)
		if err != nil {
			return outcome{}, err
		}
		return outcome{rows: rows}, nil
	case shapeScalar:
		value, err := c.executor.Scalar(ctx, stmt)
		if err != nil {
			return outcome{}, err
		}
		return outcome{scalar: value}, nil
	default:
		affected, err := c.executor.Exec(ctx, stmt)
		if err != nil {
			return outcome{}, err
		}
		return outcome{affected: affected}, nil
	}
}

// executeMiss delegates to the executor and eagerly materializes the result
// while the caller still holds the partition lock.
func (c *Coordinator) executeMiss(ctx context.Context, stmt Statement, sh shape) (*cache.Result, error) {
	switch sh {
	case shapeRows:
		rows, err := c.executor.Query(ctx, stmt)
		if err != nil {
			return nil, err
		}
		return materializeRows(ctx, rows)
	default:
		value, err := c.executor.Scalar(ctx, stmt)
		if err != nil {
			return nil, err
		}
		return &cache.Result{Kind: cache.KindScalar, Scalar: cloneScalar(value)}, nil
	}
}

// decide computes cacheability. The force-exclude and force-include
// registries short-circuit the general policy; non-deterministic statements
// and statements with no determinable partitions never cache. Policy and
// registry failures surface, they are never defaulted.
func (c *Coordinator) decide(ctx context.Context, stmt Statement, facts Facts) (bool, error) {
	if c.registry.IsBlacklisted(stmt.Text) {
		return false, nil
	}
	if c.registry.IsForced(stmt.Text) {
		return true, nil
	}
	if facts.NonDeterministic || len(facts.Partitions) == 0 {
		return false, nil
	}

	ok, err := c.policy.CanCache(ctx, stmt, facts.Partitions)
	if err != nil {
		return false, fmt.Errorf("cacheability policy: %w", err)
	}
	return ok, nil
}

// maybeStore applies the caching decision after lock release: forced
// statements always store; otherwise the materialized row count must fall
// within the policy's allowed range. Policy failures at this point no
// longer affect the caller's result, so they degrade to skipping the put.
func (c *Coordinator) maybeStore(ctx context.Context, stmt Statement, tx Tx, key string, facts Facts, result *cache.Result, sh shape) {
	forced := c.registry.IsForced(stmt.Text)

	if !forced && sh == shapeRows {
		min, max, err := c.policy.RowRange(ctx, facts.Partitions)
		if err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("row range policy failed, skipping put")
			return
		}
		if count := result.RowCount(); count < min || count > max {
			c.logger.Debug().Str("key", key).Int("rows", result.RowCount()).Msg("row count outside policy range")
			return
		}
	}

	tags := normalizePartitions(facts.Partitions)
	if len(tags) == 0 {
		// An untagged entry would be unreachable by RemoveByTag until it
		// expires, so even forced statements are not stored without
		// partitions.
		c.logger.Warn().Str("key", key).Str("statement", stmt.Text).Msg("no partitions to tag, skipping put")
		return
	}

	sliding, absolute, err := c.policy.Expiration(ctx, facts.Partitions)
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("expiration policy failed, skipping put")
		return
	}

	c.ledger.RecordPut(ctx, tx, key, &cache.Entry{
		Result:   result,
		Tags:     tags,
		Sliding:  sliding,
		Absolute: absolute,
	})
}

func wantKind(sh shape) cache.ResultKind {
	if sh == shapeScalar {
		return cache.KindScalar
	}
	return cache.KindRows
}

func snapshotOutcome(result *cache.Result, sh shape) outcome {
	if sh == shapeScalar {
		return outcome{scalar: cloneScalar(result.Scalar)}
	}
	return outcome{rows: newSnapshotRows(result)}
}

// cloneScalar copies byte-slice scalars so a stored result can never be
// mutated through a value handed to a caller.
func cloneScalar(v driver.Value) driver.Value {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}
