// Package engine reconstructs a trace by replaying classified log records
// against a State.
//
// ARCHITECTURE:
//
// First scan:
// Every line is classified once. Records that apply are forgotten, records
// whose referents do not exist yet go to the deferred set, and lines that
// match no grammar are counted and skipped.
//
// Fixpoint replay:
// The deferred set is retried pass by pass. Each pass dispatches every
// record once and collects the failures into a new set (two-set swap, no
// in-place removal). The run succeeds when the set empties.
//
// Stall:
// A pass over a non-empty set that resolves nothing is fatal. The state is
// monotonic, so another pass would see exactly the same state. The
// StallError carries every unresolved record and a Diagnosis separating
// never-declared references from dependency cycles.
//
// Single-threaded and synchronous. Retry order is first-scan order, so a
// given log always produces the same sequence of State calls.
//
// Unconditional kinds (machine components, index and field spaces, the top
// task, event edges) are never deferred. A State that refuses one breaks
// the contract and the run aborts with ErrCodeContractViolation.
package engine
