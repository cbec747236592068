package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/spy/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type       string      // Assertion type for categorization
	Expected   string      // Human-readable expected outcome
	Actual     string      // Human-readable actual outcome
	Unresolved []ir.Record // Records left by a stall, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Unresolved) > 0 {
		fmt.Fprintf(&buf, "\nUnresolved:\n")
		for _, rec := range e.Unresolved {
			fmt.Fprintf(&buf, "  %s\n", rec)
		}
	}

	return buf.String()
}

func evaluateAssertion(a Assertion, res *Result) error {
	switch a.Type {
	case AssertOutcome:
		return assertOutcome(res, a.Outcome)
	case AssertCounter:
		return assertEquals(res, a.Type, a.Counter, counter(res, a.Counter), *a.Count)
	case AssertKindCount:
		kind, err := ir.ParseKind(a.Kind)
		if err != nil {
			return err
		}
		got := 0
		if res.Summary != nil {
			got = res.Summary.PerKind[kind]
		}
		return assertEquals(res, a.Type, a.Kind, got, *a.Count)
	case AssertEntityCount:
		return assertEquals(res, a.Type, a.Entity, res.Counts[a.Entity], *a.Count)
	case AssertUnresolved:
		return assertUnresolved(res, a.Lines)
	case AssertMissingRef:
		return assertMissingRef(res, a.Ref)
	case AssertCycle:
		return assertCycle(res, a.Lines)
	case AssertStallPass:
		return assertEquals(res, a.Type, "pass", res.StallPass, *a.Count)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func counter(res *Result, name string) int {
	s := res.Summary
	if s == nil {
		return 0
	}
	switch name {
	case "lines":
		return s.Lines
	case "applied":
		return s.Applied
	case "unparsed":
		return s.Unparsed
	case "malformed":
		return s.Malformed
	case "deferred_initially":
		return s.DeferredInitially
	case "passes":
		return s.Passes
	}
	return 0
}

func assertOutcome(res *Result, want string) error {
	if res.Outcome == want {
		return nil
	}
	return &AssertionError{
		Type:       AssertOutcome,
		Expected:   want,
		Actual:     res.Outcome,
		Unresolved: res.Unresolved,
	}
}

func assertEquals(res *Result, typ, name string, got, want int) error {
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:       typ,
		Expected:   fmt.Sprintf("%s = %d", name, want),
		Actual:     fmt.Sprintf("%s = %d", name, got),
		Unresolved: res.Unresolved,
	}
}

// assertUnresolved checks that the unresolved set sits exactly on the
// given lines.
func assertUnresolved(res *Result, want []int64) error {
	got := make([]int64, 0, len(res.Unresolved))
	for _, rec := range res.Unresolved {
		got = append(got, rec.Line)
	}
	slices.Sort(got)
	want = slices.Sorted(slices.Values(want))
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:       AssertUnresolved,
		Expected:   fmt.Sprintf("lines %v", want),
		Actual:     fmt.Sprintf("lines %v", got),
		Unresolved: res.Unresolved,
	}
}

func assertMissingRef(res *Result, ref string) error {
	if slices.Contains(res.Missing, ref) {
		return nil
	}
	return &AssertionError{
		Type:       AssertMissingRef,
		Expected:   fmt.Sprintf("%s never declared", ref),
		Actual:     fmt.Sprintf("missing %v", res.Missing),
		Unresolved: res.Unresolved,
	}
}

// assertCycle checks that some reported cycle covers exactly the given
// lines, in any rotation.
func assertCycle(res *Result, want []int64) error {
	wantSet := lineSet(want)
	for _, cycle := range res.Cycles {
		if slices.Equal(lineSet(cycle), wantSet) {
			return nil
		}
	}
	return &AssertionError{
		Type:       AssertCycle,
		Expected:   fmt.Sprintf("cycle through lines %v", wantSet),
		Actual:     fmt.Sprintf("cycles %v", res.Cycles),
		Unresolved: res.Unresolved,
	}
}

// lineSet sorts and dedupes lines. Cycle paths repeat their first line.
func lineSet(lines []int64) []int64 {
	return slices.Compact(slices.Sorted(slices.Values(lines)))
}
