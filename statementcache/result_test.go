package statementcache

import (
	"context"
	"database/sql/driver"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-statement-cache/cache"
)

func TestSnapshotRows_Replay(t *testing.T) {
	result := &cache.Result{
		Kind:    cache.KindRows,
		Columns: []string{"id", "name"},
		Rows: [][]driver.Value{
			{int64(1), "alpha"},
			{int64(2), "beta"},
			{int64(3), "gamma"},
		},
	}

	rows := newSnapshotRows(result)
	got := drainRows(t, rows)

	if !reflect.DeepEqual(got, result.Rows) {
		t.Errorf("replayed rows = %v, want %v", got, result.Rows)
	}
	if rows.Next() {
		t.Error("Next() = true after exhaustion")
	}
}

func TestSnapshotRows_CloseStopsIteration(t *testing.T) {
	result := &cache.Result{Rows: [][]driver.Value{{int64(1)}}}

	rows := newSnapshotRows(result)
	if err := rows.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if rows.Next() {
		t.Error("Next() = true on closed cursor")
	}
	if _, err := rows.Values(); !errors.Is(err, errRowsClosed) {
		t.Errorf("Values() error = %v, want errRowsClosed", err)
	}
}

func TestSnapshotRows_ValuesWithoutNext(t *testing.T) {
	rows := newSnapshotRows(&cache.Result{Rows: [][]driver.Value{{int64(1)}}})
	if _, err := rows.Values(); err == nil {
		t.Error("Values() before Next() should error")
	}
}

func TestMaterializeRows(t *testing.T) {
	live := newSliceRows([]string{"id"}, [][]driver.Value{{int64(1)}, {int64(2)}})

	result, err := materializeRows(context.Background(), live)
	if err != nil {
		t.Fatalf("materializeRows() error = %v", err)
	}
	if result.Kind != cache.KindRows {
		t.Errorf("Kind = %v, want KindRows", result.Kind)
	}
	if result.RowCount() != 2 {
		t.Errorf("RowCount() = %d, want 2", result.RowCount())
	}
	if !reflect.DeepEqual(result.Columns, []string{"id"}) {
		t.Errorf("Columns = %v", result.Columns)
	}
}

func TestMaterializeRows_IterationError(t *testing.T) {
	iterErr := errors.New("driver fault")
	live := newSliceRows([]string{"id"}, nil)
	live.iterErr = iterErr

	if _, err := materializeRows(context.Background(), live); !errors.Is(err, iterErr) {
		t.Errorf("materializeRows() error = %v, want iteration error", err)
	}
}
