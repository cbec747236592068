// Package store provides SQLite-backed durable state for replay runs.
//
// A Store holds any number of runs. BeginRun returns a RunState, which
// implements state.State: every record the engine dispatches becomes one
// transaction that checks the record's references, declares the entities it
// creates and writes the committed fact.
//
// Tables:
//   - runs: one row per replay with status and summary counters
//   - entities: references declared by committed records, per run
//   - facts: committed mutations, keyed by content hash
//   - unresolved: the records a stalled run left behind
//
// # Patterns
//
// Idempotent writes
//   - Every insert uses ON CONFLICT DO NOTHING
//   - Reapplying an identical mutation commits nothing new and reports true
//
// Logical ordering
//   - Runs and facts are ordered by seq INTEGER, never by timestamps
//   - Run IDs are UUIDv7 by default; tests inject fixed IDs
//
// Refusal without side effects
//   - A record with a missing reference rolls back and reports false
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
