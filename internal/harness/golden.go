package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/spy/internal/ir"
)

// Snapshot renders a result as canonical JSON for golden comparison.
//
// Zero counts are dropped so that the memory and sqlite backends, which
// report different census keys, snapshot only what the log produced.
// Stall details appear only on stalled runs.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snap := map[string]any{
		"scenario": scenarioName,
		"outcome":  result.Outcome,
		"counts":   nonZero(result.Counts),
	}

	counters := map[string]any{}
	perKind := map[string]any{}
	if s := result.Summary; s != nil {
		counters = map[string]any{
			"lines":              s.Lines,
			"applied":            s.Applied,
			"unparsed":           s.Unparsed,
			"malformed":          s.Malformed,
			"deferred_initially": s.DeferredInitially,
			"passes":             s.Passes,
		}
		for k, n := range s.PerKind {
			if n > 0 {
				perKind[k.String()] = n
			}
		}
	}
	snap["counters"] = counters
	snap["per_kind"] = perKind

	if result.Outcome == OutcomeStall {
		snap["stall_pass"] = result.StallPass

		unresolved := make([]any, len(result.Unresolved))
		for i, rec := range result.Unresolved {
			unresolved[i] = rec
		}
		snap["unresolved"] = unresolved

		if len(result.Missing) > 0 {
			snap["missing"] = result.Missing
		}
		if len(result.Cycles) > 0 {
			cycles := make([]any, len(result.Cycles))
			for i, cycle := range result.Cycles {
				lines := make([]any, len(cycle))
				for j, line := range cycle {
					lines[j] = line
				}
				cycles[i] = lines
			}
			snap["cycles"] = cycles
		}
	}

	return ir.MarshalCanonical(snap)
}

func nonZero(counts map[string]int) map[string]any {
	out := map[string]any{}
	for k, n := range counts {
		if n != 0 {
			out[k] = n
		}
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
