package harness

import (
	"github.com/roach88/spy/internal/engine"
	"github.com/roach88/spy/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Outcome is "ok" when replay reached a fixpoint, "stall" otherwise.
	Outcome string `json:"outcome"`

	// Summary holds the engine counters, partial on a stall.
	Summary *engine.Result `json:"summary"`

	// StallPass is the replay pass that made no progress, or 0.
	StallPass int `json:"stall_pass,omitempty"`

	// Unresolved holds the records a stall left behind, ordered by line.
	Unresolved []ir.Record `json:"unresolved,omitempty"`

	// Missing lists references no record in the log ever declares.
	Missing []string `json:"missing,omitempty"`

	// Cycles lists groups of unresolved lines that wait on each other.
	Cycles [][]int64 `json:"cycles,omitempty"`

	// Counts is the backend's entity census after the run.
	Counts map[string]int `json:"counts"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Outcome: OutcomeOK,
		Counts:  map[string]int{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
