package cache

import "database/sql/driver"

// ResultKind discriminates the shape of a cached statement result.
type ResultKind int

const (
	// KindRows marks a materialized row set with column metadata.
	KindRows ResultKind = iota + 1
	// KindScalar marks a single scalar value.
	KindScalar
	// KindNonQuery marks an affected-row count. The coordinator never
	// stores non-query results, so entries of this kind only appear when a
	// store backend is shared with a host that writes them directly; the
	// kind exists to keep the stored format closed over all three
	// statement shapes.
	KindNonQuery
)

// String returns a human readable name for the result kind.
func (k ResultKind) String() string {
	switch k {
	case KindRows:
		return "rows"
	case KindScalar:
		return "scalar"
	case KindNonQuery:
		return "nonquery"
	default:
		return "unknown"
	}
}

// Result is the materialized outcome of one statement execution. It is
// immutable once stored: readers must treat Columns and Rows as read-only.
type Result struct {
	Kind    ResultKind       `msgpack:"kind" json:"kind"`
	Columns []string         `msgpack:"columns" json:"columns"`
	Rows    [][]driver.Value `msgpack:"rows" json:"rows"`
	Scalar  driver.Value     `msgpack:"scalar" json:"scalar"`

	// RowsAffected carries the count for KindNonQuery entries. See the
	// KindNonQuery note; it is part of the stored format, not produced by
	// this module.
	RowsAffected int64 `msgpack:"rows_affected" json:"rows_affected"`
}

// RowCount returns the number of materialized rows.
func (r *Result) RowCount() int {
	return len(r.Rows)
}
