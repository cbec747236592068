package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the field types a record can carry.
// Only Uint, Ident, Flag and Mask implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Uint is a non-negative integer field (ids, colors, generations, ...).
type Uint uint64

func (Uint) value() {}

// Ident is a restricted identifier token, e.g. a task name.
type Ident string

func (Ident) value() {}

// Flag is a 0/1 field converted to a boolean.
type Flag bool

func (Flag) value() {}

// Mask is an ordered list of unsigned integers, the copy field mask.
type Mask []uint64

func (Mask) value() {}

// Fields maps field names to typed values.
// Use SortedKeys() for deterministic iteration.
type Fields map[string]Value

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (f Fields) SortedKeys() []string {
	return sortedKeys(f)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785. Go's string comparison uses UTF-8 bytes, which
// orders some non-BMP characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether two field maps hold the same names and values.
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for k, v := range f {
		ov, ok := other[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// Subset reports whether every entry of want is present in f with an equal
// value. Used by scenario expectations that only pin some fields.
func (f Fields) Subset(want Fields) bool {
	for k, v := range want {
		got, ok := f[k]
		if !ok || !valuesEqual(got, v) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Mask:
		bv, ok := b.(Mask)
		return ok && slices.Equal(av, bv)
	default:
		return a == b
	}
}

// String renders the fields as "name=value" pairs in canonical key order.
func (f Fields) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.SortedKeys() {
		parts = append(parts, k+"="+FormatValue(f[k]))
	}
	return strings.Join(parts, " ")
}

// FormatValue renders a value the way it appeared in the log.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case Uint:
		return fmt.Sprintf("%d", uint64(val))
	case Ident:
		return string(val)
	case Flag:
		if val {
			return "1"
		}
		return "0"
	case Mask:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalJSON encodes fields with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range f.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(f[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes fields, inferring each value's type from its JSON
// shape: number -> Uint, string -> Ident, bool -> Flag, array -> Mask.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	out, err := FieldsFromMap(raw)
	if err != nil {
		return err
	}
	*f = out
	return nil
}

// MarshalValue marshals a single value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Uint:
		return json.Marshal(uint64(val))
	case Ident:
		return json.Marshal(string(val))
	case Flag:
		return json.Marshal(bool(val))
	case Mask:
		if val == nil {
			return []byte("[]"), nil
		}
		return json.Marshal([]uint64(val))
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// FieldsFromMap converts loosely typed values (decoded YAML or JSON) into
// Fields. Integers become Uint, strings Ident, booleans Flag and lists of
// integers Mask. Negative numbers and floats are rejected.
func FieldsFromMap(raw map[string]any) (Fields, error) {
	out := make(Fields, len(raw))
	for k, v := range raw {
		val, err := ValueFromAny(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// ValueFromAny converts a single loosely typed value into a Value.
func ValueFromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a field value")
	case Value:
		return val, nil
	case string:
		return Ident(val), nil
	case bool:
		return Flag(val), nil
	case int:
		return uintFromInt64(int64(val))
	case int64:
		return uintFromInt64(val)
	case uint64:
		return Uint(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE-") {
			return nil, fmt.Errorf("not an unsigned integer: %s", s)
		}
		var n uint64
		if _, err := fmt.Sscan(s, &n); err != nil {
			return nil, fmt.Errorf("number out of range: %s", s)
		}
		return Uint(n), nil
	case float64:
		if val < 0 || val != math.Trunc(val) || val > math.MaxUint64 {
			return nil, fmt.Errorf("not an unsigned integer: %v", val)
		}
		return Uint(uint64(val)), nil
	case []any:
		mask := make(Mask, len(val))
		for i, elem := range val {
			ev, err := ValueFromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n, ok := ev.(Uint)
			if !ok {
				return nil, fmt.Errorf("[%d]: mask entries must be unsigned integers", i)
			}
			mask[i] = uint64(n)
		}
		return mask, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func uintFromInt64(n int64) (Value, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative value %d", n)
	}
	return Uint(uint64(n)), nil
}
