package testsupport

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/statementcache"
)

func taggedEntry(tags ...string) *cache.Entry {
	return &cache.Entry{Tags: tags}
}

func testStatement() statementcache.Statement {
	return statementcache.Statement{ConnID: "conn-1", Text: "SELECT 1"}
}

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, "key-1", taggedEntry("Orders")); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	got, ok, err := store.Get(ctx, "key-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !got.HasTag("Orders") {
		t.Fatal("stored entry lost its tags")
	}

	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Fatal("unexpected hit on missing key")
	}
}

func TestMemoryStoreRemoveByTag(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "a", taggedEntry("Orders"))
	store.Put(ctx, "b", taggedEntry("Orders", "Customers"))
	store.Put(ctx, "c", taggedEntry("Customers"))

	if err := store.RemoveByTag(ctx, "Orders"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", store.Len())
	}
	if _, ok, _ := store.Get(ctx, "c"); !ok {
		t.Fatal("entry without the removed tag should survive")
	}
	if len(store.Removals) != 1 || store.Removals[0] != "Orders" {
		t.Fatalf("unexpected removals log: %v", store.Removals)
	}
}

func TestFakeTxFiresHooksOnce(t *testing.T) {
	tx := NewFakeTx("tx-1")

	var fired int
	var outcome bool
	tx.OnComplete(func(committed bool) {
		fired++
		outcome = committed
	})

	tx.Commit()
	tx.Commit()
	tx.Rollback()

	if fired != 1 {
		t.Fatalf("expected hook to fire once, fired %d times", fired)
	}
	if !outcome {
		t.Fatal("expected committed=true")
	}
}

func TestFakeTxRollback(t *testing.T) {
	tx := NewFakeTx("tx-2")

	var outcome bool
	tx.OnComplete(func(committed bool) { outcome = committed })
	tx.Rollback()

	if outcome {
		t.Fatal("expected committed=false")
	}
}

func TestScriptedExecutorCountsCalls(t *testing.T) {
	exec := &ScriptedExecutor{
		Columns:  []string{"id"},
		Rows:     [][]driver.Value{{int64(1)}},
		ScalarV:  int64(1),
		Affected: 2,
	}
	ctx := context.Background()

	rows, err := exec.Query(ctx, testStatement())
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	rows.Close()

	if _, err := exec.Scalar(ctx, testStatement()); err != nil {
		t.Fatalf("unexpected scalar error: %v", err)
	}
	if n, err := exec.Exec(ctx, testStatement()); err != nil || n != 2 {
		t.Fatalf("expected affected=2, got %d err=%v", n, err)
	}

	if exec.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", exec.Calls())
	}
}

func TestScriptedExecutorError(t *testing.T) {
	boom := errors.New("boom")
	exec := &ScriptedExecutor{Err: boom}

	if _, err := exec.Query(context.Background(), testStatement()); !errors.Is(err, boom) {
		t.Fatalf("expected scripted error, got %v", err)
	}
}

func TestListRegistry(t *testing.T) {
	reg := &ListRegistry{
		Forced:      []string{"SELECT 1"},
		Blacklisted: []string{"SELECT 2"},
	}

	if !reg.IsForced("SELECT 1") || reg.IsForced("SELECT 2") {
		t.Fatal("forced list mismatch")
	}
	if !reg.IsBlacklisted("SELECT 2") || reg.IsBlacklisted("SELECT 1") {
		t.Fatal("blacklist mismatch")
	}
}

func TestSliceRowsIteration(t *testing.T) {
	rows := NewSliceRows([]string{"id", "name"}, [][]driver.Value{
		{int64(1), "first"},
		{int64(2), "second"},
	})

	if _, err := rows.Values(); !errors.Is(err, ErrNoCurrentRow) {
		t.Fatalf("expected ErrNoCurrentRow before Next, got %v", err)
	}

	var seen int
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			t.Fatalf("unexpected values error: %v", err)
		}
		if len(values) != 2 {
			t.Fatalf("expected 2 values, got %d", len(values))
		}
		seen++
	}
	if seen != 2 {
		t.Fatalf("expected 2 rows, got %d", seen)
	}

	if err := rows.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if rows.Next() {
		t.Fatal("Next should return false after Close")
	}
}
