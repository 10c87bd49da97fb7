package statementcache

import (
	"context"
	"database/sql/driver"
	"time"

	"github.com/goliatone/go-statement-cache/cache"
)

// Statement identifies one statement execution: the connection it runs
// against, its text, and the ordered parameter sequence.
type Statement struct {
	ConnID string
	Text   string
	Params []cache.Param
}

// Facts describes what the external statement analyzer determined about a
// statement. Partitions is the set of logical entity sets the statement
// reads from or writes to; it may be empty when no effect is determinable.
type Facts struct {
	IsQuery          bool
	Partitions       []string
	NonDeterministic bool
}

// FactsProvider is the external statement-analysis collaborator.
type FactsProvider interface {
	Facts(ctx context.Context, stmt Statement) (Facts, error)
}

// Policy is the external cacheability policy. Errors are never swallowed:
// a failure to determine cacheability surfaces to the caller rather than
// defaulting to always or never cache.
type Policy interface {
	// CanCache decides whether the statement's result may be stored or
	// served from cache at all.
	CanCache(ctx context.Context, stmt Statement, partitions []string) (bool, error)

	// RowRange returns the inclusive row-count bounds a result must fall
	// within to be stored.
	RowRange(ctx context.Context, partitions []string) (min, max int, err error)

	// Expiration returns the sliding timeout and absolute deadline for
	// entries derived from the given partitions.
	Expiration(ctx context.Context, partitions []string) (sliding time.Duration, absolute time.Time, err error)
}

// Registry holds the force-include and force-exclude statement lists.
// Both are consulted before the general policy and short-circuit it.
type Registry interface {
	IsForced(statement string) bool
	IsBlacklisted(statement string) bool
}

// Rows is a forward-only cursor over a result set. Live cursors returned by
// an Executor are single-use; snapshot cursors returned on cache hits are
// independent per caller.
type Rows interface {
	// Columns returns the column names of the result set.
	Columns() []string

	// Next advances to the next row, returning false when exhausted.
	Next() bool

	// Values returns the current row. The returned slice is owned by the
	// caller.
	Values() ([]driver.Value, error)

	// Err returns the first error encountered during iteration.
	Err() error

	// Close releases resources held by the cursor.
	Close() error
}

// Executor performs the actual statement execution against the underlying
// store. The coordinator delegates to it on every miss and for every
// non-cacheable or write statement, propagating its errors unchanged.
type Executor interface {
	Query(ctx context.Context, stmt Statement) (Rows, error)
	Scalar(ctx context.Context, stmt Statement) (driver.Value, error)
	Exec(ctx context.Context, stmt Statement) (int64, error)
}

// Tx is an ambient database transaction handle. The core never manages the
// transaction itself; it only groups pending cache effects by ID and asks
// the host to deliver the completion event exactly once.
type Tx interface {
	// ID returns a stable identifier for the transaction.
	ID() string

	// OnComplete registers a completion hook the host invokes exactly once
	// when the transaction commits (committed=true) or rolls back.
	OnComplete(fn func(committed bool))
}
