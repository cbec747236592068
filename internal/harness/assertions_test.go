package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spy/internal/engine"
	"github.com/roach88/spy/internal/ir"
)

func count(n int) *int { return &n }

func stalledResult() *Result {
	res := NewResult()
	res.Outcome = OutcomeStall
	res.StallPass = 1
	res.Summary = &engine.Result{Lines: 3, Applied: 1, PerKind: map[ir.Kind]int{ir.KindIndexSpace: 1}}
	res.Unresolved = []ir.Record{
		{Kind: ir.KindIndexPartition, Line: 3},
		{Kind: ir.KindIndexSubspace, Line: 2},
	}
	res.Missing = []string{"partition:5"}
	res.Cycles = [][]int64{{2, 3, 2}}
	res.Counts = map[string]int{"space": 1}
	return res
}

func TestEvaluateAssertion(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		pass bool
	}{
		{"outcome matches", Assertion{Type: AssertOutcome, Outcome: OutcomeStall}, true},
		{"outcome differs", Assertion{Type: AssertOutcome, Outcome: OutcomeOK}, false},
		{"counter", Assertion{Type: AssertCounter, Counter: "lines", Count: count(3)}, true},
		{"counter differs", Assertion{Type: AssertCounter, Counter: "applied", Count: count(2)}, false},
		{"kind count", Assertion{Type: AssertKindCount, Kind: "IndexSpace", Count: count(1)}, true},
		{"kind count absent is zero", Assertion{Type: AssertKindCount, Kind: "Region", Count: count(0)}, true},
		{"entity count", Assertion{Type: AssertEntityCount, Entity: "space", Count: count(1)}, true},
		{"unresolved any order", Assertion{Type: AssertUnresolved, Lines: []int64{3, 2}}, true},
		{"unresolved subset fails", Assertion{Type: AssertUnresolved, Lines: []int64{2}}, false},
		{"missing ref", Assertion{Type: AssertMissingRef, Ref: "partition:5"}, true},
		{"missing ref absent", Assertion{Type: AssertMissingRef, Ref: "space:1"}, false},
		{"cycle", Assertion{Type: AssertCycle, Lines: []int64{3, 2}}, true},
		{"cycle wrong lines", Assertion{Type: AssertCycle, Lines: []int64{1, 2}}, false},
		{"stall pass", Assertion{Type: AssertStallPass, Count: count(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluateAssertion(tt.a, stalledResult())
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertionError_IncludesUnresolved(t *testing.T) {
	err := evaluateAssertion(Assertion{Type: AssertOutcome, Outcome: OutcomeOK}, stalledResult())
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "ok", ae.Expected)
	assert.Equal(t, "stall", ae.Actual)
	assert.Contains(t, err.Error(), "Unresolved:")
	assert.Contains(t, err.Error(), "line 2: IndexSubspace")
}

func TestEvaluateAssertion_EmptyUnresolvedOnSuccess(t *testing.T) {
	res := NewResult()
	assert.NoError(t, evaluateAssertion(Assertion{Type: AssertUnresolved}, res))
}
