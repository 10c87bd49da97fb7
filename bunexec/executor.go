// Package bunexec adapts a bun database handle to the statementcache
// Executor interface.
package bunexec

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-statement-cache/statementcache"
)

// conn is the narrow slice of bun.IDB the executor needs. bun.DB, bun.Conn
// and bun.Tx all satisfy it.
type conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Executor runs statements against a bun database handle. Named parameters
// are forwarded as sql.Named arguments; unnamed ones positionally.
type Executor struct {
	db conn
}

// New creates an Executor over the given bun handle.
func New(db bun.IDB) *Executor {
	return &Executor{db: db}
}

var _ statementcache.Executor = (*Executor)(nil)

// Query implements statementcache.Executor.Query, returning a live cursor
// over the underlying sql.Rows.
func (e *Executor) Query(ctx context.Context, stmt statementcache.Statement) (statementcache.Rows, error) {
	rows, err := e.db.QueryContext(ctx, stmt.Text, bindArgs(stmt)...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &sqlRows{rows: rows, cols: cols}, nil
}

// Scalar implements statementcache.Executor.Scalar.
func (e *Executor) Scalar(ctx context.Context, stmt statementcache.Statement) (driver.Value, error) {
	var value any
	if err := e.db.QueryRowContext(ctx, stmt.Text, bindArgs(stmt)...).Scan(&value); err != nil {
		return nil, err
	}
	return normalizeValue(value), nil
}

// Exec implements statementcache.Executor.Exec.
func (e *Executor) Exec(ctx context.Context, stmt statementcache.Statement) (int64, error) {
	res, err := e.db.ExecContext(ctx, stmt.Text, bindArgs(stmt)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// bindArgs converts statement parameters to database/sql arguments.
func bindArgs(stmt statementcache.Statement) []any {
	if len(stmt.Params) == 0 {
		return nil
	}
	args := make([]any, len(stmt.Params))
	for i, p := range stmt.Params {
		if p.Name != "" {
			args[i] = sql.Named(p.Name, p.Value)
		} else {
			args[i] = p.Value
		}
	}
	return args
}

// sqlRows adapts *sql.Rows to the statementcache.Rows cursor.
type sqlRows struct {
	rows *sql.Rows
	cols []string
}

func (r *sqlRows) Columns() []string {
	return append([]string(nil), r.cols...)
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Values() ([]driver.Value, error) {
	raw := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	values := make([]driver.Value, len(raw))
	for i, v := range raw {
		values[i] = normalizeValue(v)
	}
	return values, nil
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

// normalizeValue copies driver-owned buffers so materialized rows stay
// valid after the cursor advances.
func normalizeValue(v any) driver.Value {
	switch t := v.(type) {
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	case sql.RawBytes:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
