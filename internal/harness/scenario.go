package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
)

// Scenario is a trace log plus the expectations its replay must meet.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the state: "memory" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	// RawLines makes Log entries full lines instead of record bodies that
	// get the standard prefix.
	RawLines bool `yaml:"raw_lines,omitempty"`

	// RunID fixes the persisted run ID on the sqlite backend.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Log is the trace, one line per entry.
	Log []string `yaml:"log"`

	// Assertions validate the replay outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeStall = "stall"
)

// Assertion validates one aspect of a replay.
type Assertion struct {
	// Type selects the check:
	// - "outcome": Outcome is ok or stall
	// - "counter": engine counter named by Counter equals Count
	// - "kind_count": records of Kind applied equals Count
	// - "entity_count": backend count named by Entity equals Count
	// - "unresolved": unresolved records sit exactly on Lines
	// - "missing_ref": the stall diagnosis names Ref as never declared
	// - "cycle": the stall diagnosis reports a cycle through Lines
	// - "stall_pass": the stall happened on pass Count
	Type string `yaml:"type"`

	Outcome string  `yaml:"outcome,omitempty"`
	Counter string  `yaml:"counter,omitempty"`
	Kind    string  `yaml:"kind,omitempty"`
	Entity  string  `yaml:"entity,omitempty"`
	Ref     string  `yaml:"ref,omitempty"`
	Lines   []int64 `yaml:"lines,omitempty"`
	Count   *int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome     = "outcome"
	AssertCounter     = "counter"
	AssertKindCount   = "kind_count"
	AssertEntityCount = "entity_count"
	AssertUnresolved  = "unresolved"
	AssertMissingRef  = "missing_ref"
	AssertCycle       = "cycle"
	AssertStallPass   = "stall_pass"
)

// Counters names the engine counters a "counter" assertion may check.
var Counters = []string{"lines", "applied", "unparsed", "malformed", "deferred_initially", "passes"}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Backend == "" {
		scenario.Backend = BackendMemory
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Backend != BackendMemory && s.Backend != BackendSQLite {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendMemory, BackendSQLite, s.Backend)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	needCount := func() error {
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: %s requires count", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutcome:
		if a.Outcome != OutcomeOK && a.Outcome != OutcomeStall {
			return fmt.Errorf("assertions[%d]: outcome must be %q or %q", index, OutcomeOK, OutcomeStall)
		}
	case AssertCounter:
		if !slices.Contains(Counters, a.Counter) {
			return fmt.Errorf("assertions[%d]: unknown counter %q", index, a.Counter)
		}
		return needCount()
	case AssertKindCount:
		if _, err := ir.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		return needCount()
	case AssertEntityCount:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity_count requires entity", index)
		}
		return needCount()
	case AssertUnresolved:
		// An empty list asserts nothing is unresolved.
	case AssertMissingRef:
		if _, err := state.ParseRef(a.Ref); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertCycle:
		if len(a.Lines) < 2 {
			return fmt.Errorf("assertions[%d]: cycle requires at least two lines", index)
		}
	case AssertStallPass:
		return needCount()
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
