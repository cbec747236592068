// Package state defines the mutation interface between the replay engine and
// whatever accumulates the reconstructed graph, plus an in-memory reference
// implementation.
//
// The engine never reads state. It only learns, per call, whether the
// mutation committed or has to wait for an entity that has not been logged
// yet. Entities are monotonic: once declared they are never removed, so a
// record that becomes ready stays ready.
//
// Requires and Declares describe, per record, which entities a mutation
// needs and which it creates. The SQLite store uses them to implement State
// generically; the engine uses them to explain a stall.
package state
