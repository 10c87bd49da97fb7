package statementcache

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/goliatone/go-statement-cache/cache"
)

// errRowsClosed is returned when reading from a closed snapshot cursor.
var errRowsClosed = errors.New("statementcache: rows closed")

// snapshotRows is a read-only cursor over a materialized result. Every hit
// gets a fresh cursor, so multiple readers of the same cached result never
// interfere; the underlying result is shared and must not be mutated.
type snapshotRows struct {
	result *cache.Result
	idx    int
	closed bool
}

// newSnapshotRows creates an independent cursor over the result's rows.
func newSnapshotRows(result *cache.Result) *snapshotRows {
	return &snapshotRows{result: result, idx: -1}
}

// Columns implements Rows.Columns.
func (r *snapshotRows) Columns() []string {
	return append([]string(nil), r.result.Columns...)
}

// Next implements Rows.Next.
func (r *snapshotRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.result.Rows)
}

// Values implements Rows.Values. The returned slice is a copy; the cached
// rows stay untouched no matter what callers do with it.
func (r *snapshotRows) Values() ([]driver.Value, error) {
	if r.closed {
		return nil, errRowsClosed
	}
	if r.idx < 0 || r.idx >= len(r.result.Rows) {
		return nil, errors.New("statementcache: Values called without Next")
	}
	row := r.result.Rows[r.idx]
	out := make([]driver.Value, len(row))
	copy(out, row)
	return out, nil
}

// Err implements Rows.Err. Snapshot iteration cannot fail.
func (r *snapshotRows) Err() error { return nil }

// Close implements Rows.Close.
func (r *snapshotRows) Close() error {
	r.closed = true
	return nil
}

// materializeRows drains a live cursor into an immutable Result. The caller
// is expected to hold the partition lock for the duration; the live cursor
// is always closed, even on failure.
func materializeRows(ctx context.Context, rows Rows) (*cache.Result, error) {
	defer rows.Close()

	result := &cache.Result{
		Kind:    cache.KindRows,
		Columns: append([]string(nil), rows.Columns()...),
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]driver.Value, len(values))
		copy(row, values)
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
