package bunexec

import (
	"bytes"
	"database/sql"
	"testing"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/statementcache"
)

func TestNormalizeValueCopiesByteSlices(t *testing.T) {
	src := []byte("original")

	got := normalizeValue(src)
	out, ok := got.([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", got)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected %q, got %q", src, out)
	}

	src[0] = 'X'
	if bytes.Equal(out, src) {
		t.Fatal("normalized value shares the source buffer")
	}
}

func TestNormalizeValueRawBytes(t *testing.T) {
	src := sql.RawBytes("payload")

	got := normalizeValue(src)
	if _, ok := got.([]byte); !ok {
		t.Fatalf("expected []byte, got %T", got)
	}
}

func TestNormalizeValuePassesScalarsThrough(t *testing.T) {
	cases := []any{int64(7), "text", 3.14, true, nil}
	for _, in := range cases {
		if got := normalizeValue(in); got != in {
			t.Fatalf("expected %v passed through, got %v", in, got)
		}
	}
}

func TestBindArgs(t *testing.T) {
	stmt := statementcache.Statement{
		Text: "SELECT * FROM orders WHERE region = :region AND id = ?",
		Params: []cache.Param{
			{Name: "region", Value: "EU"},
			{Value: int64(42)},
		},
	}

	args := bindArgs(stmt)
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	named, ok := args[0].(sql.NamedArg)
	if !ok {
		t.Fatalf("expected sql.NamedArg, got %T", args[0])
	}
	if named.Name != "region" || named.Value != "EU" {
		t.Fatalf("unexpected named arg: %+v", named)
	}
	if args[1] != int64(42) {
		t.Fatalf("unexpected positional arg: %v", args[1])
	}
}

func TestBindArgsEmpty(t *testing.T) {
	if args := bindArgs(statementcache.Statement{Text: "SELECT 1"}); args != nil {
		t.Fatalf("expected nil args, got %v", args)
	}
}
