package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// keyNamespace prefixes every generated key so statement entries never
// collide with tag bookkeeping or other tenants of a shared backend.
const keyNamespace = "stmt"

// ErrEmptyStatement is returned when a key is requested for a statement
// with no text.
var ErrEmptyStatement = errors.New("cache: statement text is empty")

// Param is a single ordered statement parameter (name and bound value).
type Param struct {
	Name  string
	Value any
}

// KeyBuilder derives a deterministic cache key from connection identity,
// statement text, and the ordered parameter sequence. Implementations must
// be pure: equal inputs always produce equal keys, and a difference in any
// component produces a different key.
type KeyBuilder interface {
	Build(connID, statement string, params []Param) (string, error)
}

// defaultKeyBuilder implements KeyBuilder using reflection-based value
// serialization. It formats parameter values in a stable, type-tagged
// textual form and digests the canonical string with xxhash so the final
// key stays short regardless of statement length.
type defaultKeyBuilder struct{}

// NewDefaultKeyBuilder creates a new instance of the default key builder.
func NewDefaultKeyBuilder() KeyBuilder {
	return &defaultKeyBuilder{}
}

// Build assembles the canonical representation of the statement identity and
// returns its digested key. Each segment is length-prefixed before hashing so
// segment boundaries can never be confused.
func (b *defaultKeyBuilder) Build(connID, statement string, params []Param) (string, error) {
	if strings.TrimSpace(statement) == "" {
		return "", ErrEmptyStatement
	}

	var canonical strings.Builder
	writeSegment(&canonical, connID)
	writeSegment(&canonical, statement)
	for _, p := range params {
		writeSegment(&canonical, p.Name)
		writeSegment(&canonical, b.serializeValue(p.Value))
	}

	digest := xxhash.Sum64String(canonical.String())
	return keyNamespace + KeySeparator + connID + KeySeparator + strconv.FormatUint(digest, 16), nil
}

func writeSegment(sb *strings.Builder, segment string) {
	sb.WriteString(strconv.Itoa(len(segment)))
	sb.WriteByte(':')
	sb.WriteString(segment)
	sb.WriteByte(';')
}

// serializeValue handles individual parameter serialization based on type.
// Every representation carries a type tag so values that print alike but
// differ in type (int64 42 vs string "42") never produce the same key.
func (b *defaultKeyBuilder) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	switch t := v.(type) {
	case time.Time:
		return "time:" + t.UTC().Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("bytes:%x", t)
	case float64:
		return "float64:" + strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return "float32:" + strconv.FormatFloat(float64(t), 'g', -1, 32)
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return b.serializeValue(rv.Elem().Interface())

	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return b.serializeSequence("slice", rv)

	case reflect.Array:
		return b.serializeSequence("array", rv)

	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return b.serializeMap(rv)

	case reflect.Struct:
		return b.serializeStruct(rv, rt)

	case reflect.Interface:
		if rv.IsNil() {
			return "interface:nil"
		}
		return b.serializeValue(rv.Elem().Interface())
	}

	if isBasicKind(rt.Kind()) {
		return fmt.Sprintf("%s:%v", rt.Kind(), v)
	}

	return b.jsonFallback(v)
}

// serializeSequence handles slice and array serialization recursively.
func (b *defaultKeyBuilder) serializeSequence(label string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		parts[i] = b.serializeValue(rv.Index(i).Interface())
	}

	return fmt.Sprintf("%s[%d]:{%s}", label, length, strings.Join(parts, ","))
}

// serializeMap handles map serialization with sorted keys for determinism.
func (b *defaultKeyBuilder) serializeMap(rv reflect.Value) string {
	keys := rv.MapKeys()

	type pair struct {
		key   string
		value reflect.Value
	}
	pairs := make([]pair, len(keys))
	for i, k := range keys {
		pairs[i] = pair{key: b.serializeValue(k.Interface()), value: rv.MapIndex(k)}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%s", p.key, b.serializeValue(p.value.Interface()))
	}

	return fmt.Sprintf("map[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

// serializeStruct handles struct serialization with field names.
func (b *defaultKeyBuilder) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	numFields := rv.NumField()
	parts := make([]string, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, b.serializeValue(fieldValue.Interface())))
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

func isBasicKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort.
func (b *defaultKeyBuilder) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s", reflect.TypeOf(v).String())
	}
	return fmt.Sprintf("json:%s", string(data))
}
