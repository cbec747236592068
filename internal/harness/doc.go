// Package harness provides scenario-driven conformance testing for the
// replay engine.
//
// A scenario is a small trace log plus assertions about what replaying it
// must produce. The harness runs the log through the real engine against a
// fresh backend, so scenarios exercise the classifier, the dispatcher and
// the fixpoint driver end to end.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	backend: memory            # or sqlite
//	log:
//	  - Index Subspace 2 3 0
//	  - Index Partition 1 2 1 0
//	  - Index Space 1
//	assertions:
//	  - type: outcome
//	    outcome: ok
//	  - type: counter
//	    counter: passes
//	    count: 2
//
// Log entries are record bodies; the harness adds the standard line
// prefix. Set raw_lines: true to supply whole lines, including noise.
//
// # Assertion Types
//
//   - outcome: ok or stall
//   - counter: one of lines, applied, unparsed, malformed,
//     deferred_initially, passes
//   - kind_count: applied records of one kind
//   - entity_count: a backend census key ("space", "proc_mem", "IndexSpace")
//   - unresolved: the exact set of lines a stall left behind
//   - missing_ref: a reference no record ever declared, e.g. partition:5
//   - cycle: a group of lines that wait on each other
//   - stall_pass: the replay pass that made no progress
//
// # Deterministic Testing
//
// Every scenario runs against an isolated backend: a fresh in-memory graph,
// or an in-memory SQLite store with a fixed run ID. Golden snapshots are
// canonical JSON, so identical runs produce identical bytes.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/stall.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        fmt.Println(e)
//	    }
//	}
package harness
