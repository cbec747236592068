// Package grammar classifies raw trace-log lines into typed records.
//
// Every recognized line carries the shared prefix
//
//	[<node> - <thread>] {<level>}{legion_spy}: <phrase> <fields...>
//
// followed by a keyword phrase and space-separated fields. The Table lists
// one Grammar per ir.Kind in declaration order; Classify tries them in that
// order and returns the first match.
//
// Classification is a pure function of the line. It performs no semantic
// validation: a line that names an index space nobody declared still
// classifies fine, and it is the engine's job to defer it.
//
// Grammars are mutually exclusive. Patterns are anchored at both ends, so
// "Processor 1 2 3" can never match the "Processor Memory" grammar and
// vice versa.
package grammar
