// Package testsupport provides in-memory fakes for exercising the
// statement cache without a database or a real store.
package testsupport

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/statementcache"
)

// MemoryStore is a map-backed cache.Store. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry

	// Removals records every tag passed to RemoveByTag, in order.
	Removals []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*cache.Entry)}
}

var _ cache.Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, key string) (*cache.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, entry *cache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) RemoveByTag(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Removals = append(s.Removals, tag)
	for key, entry := range s.entries {
		if entry.HasTag(tag) {
			delete(s.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// FakeTx is a manually driven statementcache.Tx. Call Commit or Rollback
// to fire the registered completion hooks.
type FakeTx struct {
	TxID string

	mu    sync.Mutex
	hooks []func(committed bool)
	done  bool
}

// NewFakeTx creates a FakeTx with the given identifier.
func NewFakeTx(id string) *FakeTx {
	return &FakeTx{TxID: id}
}

var _ statementcache.Tx = (*FakeTx)(nil)

func (tx *FakeTx) ID() string { return tx.TxID }

func (tx *FakeTx) OnComplete(fn func(committed bool)) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.hooks = append(tx.hooks, fn)
}

// Commit fires completion hooks with committed=true. Idempotent.
func (tx *FakeTx) Commit() { tx.finish(true) }

// Rollback fires completion hooks with committed=false. Idempotent.
func (tx *FakeTx) Rollback() { tx.finish(false) }

func (tx *FakeTx) finish(committed bool) {
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return
	}
	tx.done = true
	hooks := tx.hooks
	tx.mu.Unlock()

	for _, fn := range hooks {
		fn(committed)
	}
}

// ScriptedExecutor returns canned results and counts invocations.
type ScriptedExecutor struct {
	Columns  []string
	Rows     [][]driver.Value
	ScalarV  driver.Value
	Affected int64
	Err      error

	mu    sync.Mutex
	calls int
}

var _ statementcache.Executor = (*ScriptedExecutor)(nil)

func (e *ScriptedExecutor) Query(context.Context, statementcache.Statement) (statementcache.Rows, error) {
	e.bump()
	if e.Err != nil {
		return nil, e.Err
	}
	return NewSliceRows(e.Columns, e.Rows), nil
}

func (e *ScriptedExecutor) Scalar(context.Context, statementcache.Statement) (driver.Value, error) {
	e.bump()
	if e.Err != nil {
		return nil, e.Err
	}
	return e.ScalarV, nil
}

func (e *ScriptedExecutor) Exec(context.Context, statementcache.Statement) (int64, error) {
	e.bump()
	if e.Err != nil {
		return 0, e.Err
	}
	return e.Affected, nil
}

// Calls reports how many statements reached the executor.
func (e *ScriptedExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *ScriptedExecutor) bump() {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
}

// StaticFacts reports the same facts for every statement.
type StaticFacts struct {
	Out statementcache.Facts
	Err error
}

var _ statementcache.FactsProvider = (*StaticFacts)(nil)

func (f *StaticFacts) Facts(context.Context, statementcache.Statement) (statementcache.Facts, error) {
	return f.Out, f.Err
}

// StaticPolicy applies fixed caching parameters to every statement.
type StaticPolicy struct {
	Cacheable bool
	MinRows   int
	MaxRows   int
	Sliding   time.Duration
	Absolute  time.Time
}

var _ statementcache.Policy = (*StaticPolicy)(nil)

func (p *StaticPolicy) CanCache(context.Context, statementcache.Statement, []string) (bool, error) {
	return p.Cacheable, nil
}

func (p *StaticPolicy) RowRange(context.Context, []string) (int, int, error) {
	return p.MinRows, p.MaxRows, nil
}

func (p *StaticPolicy) Expiration(context.Context, []string) (time.Duration, time.Time, error) {
	return p.Sliding, p.Absolute, nil
}

// ListRegistry matches statement text against fixed force and exclude lists.
type ListRegistry struct {
	Forced      []string
	Blacklisted []string
}

var _ statementcache.Registry = (*ListRegistry)(nil)

func (r *ListRegistry) IsForced(statement string) bool {
	return contains(r.Forced, statement)
}

func (r *ListRegistry) IsBlacklisted(statement string) bool {
	return contains(r.Blacklisted, statement)
}

func contains(list []string, text string) bool {
	for _, item := range list {
		if item == text {
			return true
		}
	}
	return false
}

// ErrNoCurrentRow is returned by SliceRows.Values when the cursor is not
// positioned on a row.
var ErrNoCurrentRow = errors.New("testsupport: no current row")

// SliceRows is an in-memory statementcache.Rows cursor over fixed data.
type SliceRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
	closed  bool
}

// NewSliceRows creates a cursor positioned before the first row.
func NewSliceRows(columns []string, rows [][]driver.Value) *SliceRows {
	return &SliceRows{columns: columns, rows: rows, idx: -1}
}

var _ statementcache.Rows = (*SliceRows)(nil)

func (r *SliceRows) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *SliceRows) Next() bool {
	if r.closed || r.idx+1 >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *SliceRows) Values() ([]driver.Value, error) {
	if r.closed || r.idx < 0 || r.idx >= len(r.rows) {
		return nil, ErrNoCurrentRow
	}
	return append([]driver.Value(nil), r.rows[r.idx]...), nil
}

func (r *SliceRows) Err() error { return nil }

func (r *SliceRows) Close() error {
	r.closed = true
	return nil
}
