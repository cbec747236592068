package ir

import "fmt"

// Record is one decoded line of the trace log.
//
// Records are created once by the classifier and never mutated. The
// engine either dispatches a record and forgets it, or holds it in the
// deferred set until a replay pass applies it.
type Record struct {
	Kind   Kind   `json:"kind"`
	Line   int64  `json:"line"`   // 1-based line number in the source log
	Node   uint64 `json:"node"`   // Node identifier from the line prefix
	Thread string `json:"thread"` // Thread identifier (lowercase hex) from the line prefix
	Fields Fields `json:"fields"`
}

// Uint returns the named unsigned field, or 0 if absent.
// The classifier guarantees presence for every field in a kind's schema.
func (r Record) Uint(name string) uint64 {
	if v, ok := r.Fields[name].(Uint); ok {
		return uint64(v)
	}
	return 0
}

// Ident returns the named identifier field, or "" if absent.
func (r Record) Ident(name string) string {
	if v, ok := r.Fields[name].(Ident); ok {
		return string(v)
	}
	return ""
}

// Flag returns the named boolean field, or false if absent.
func (r Record) Flag(name string) bool {
	if v, ok := r.Fields[name].(Flag); ok {
		return bool(v)
	}
	return false
}

// Mask returns the named mask field, or nil if absent.
func (r Record) Mask(name string) []uint64 {
	if v, ok := r.Fields[name].(Mask); ok {
		return []uint64(v)
	}
	return nil
}

// String renders the record for diagnostics, e.g.
// "line 3: IndexSubspace color=0 pid=5 uid=9".
func (r Record) String() string {
	return fmt.Sprintf("line %d: %s %s", r.Line, r.Kind, r.Fields)
}
