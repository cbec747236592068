package testutil

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// SpyPrefix is the line prefix every test log line carries.
const SpyPrefix = "[0 - 7f3a] {info}{legion_spy}: "

// SpyLine prefixes a record body, e.g.
//
//	SpyLine("Processor Memory 7 3 100 5")
func SpyLine(body string) string {
	return SpyPrefix + body
}

// Log builds a trace log line by line.
type Log struct {
	lines []string
}

// NewLog returns a log holding the given record bodies, each prefixed.
func NewLog(bodies ...string) *Log {
	l := &Log{}
	for _, b := range bodies {
		l.Add(b)
	}
	return l
}

// Add appends a prefixed record body.
func (l *Log) Add(body string) *Log {
	l.lines = append(l.lines, SpyLine(body))
	return l
}

// Addf appends a prefixed record body built with fmt.Sprintf.
func (l *Log) Addf(format string, args ...any) *Log {
	return l.Add(fmt.Sprintf(format, args...))
}

// Raw appends a line verbatim (no prefix), e.g. unrelated runtime output.
func (l *Log) Raw(line string) *Log {
	l.lines = append(l.lines, line)
	return l
}

// Lines returns a copy of the lines.
func (l *Log) Lines() []string {
	return slices.Clone(l.lines)
}

// String joins the lines with newlines, ending with a trailing newline.
func (l *Log) String() string {
	if len(l.lines) == 0 {
		return ""
	}
	return strings.Join(l.lines, "\n") + "\n"
}

// Reader returns the log as an io.Reader.
func (l *Log) Reader() *strings.Reader {
	return strings.NewReader(l.String())
}

// Reversed returns a new log with the lines in reverse order.
func (l *Log) Reversed() *Log {
	lines := slices.Clone(l.lines)
	slices.Reverse(lines)
	return &Log{lines: lines}
}

// Shuffled returns a new log with the lines permuted by a seeded PRNG.
// The same seed always yields the same order.
func (l *Log) Shuffled(seed uint64) *Log {
	lines := slices.Clone(l.lines)
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(len(lines), func(i, j int) { lines[i], lines[j] = lines[j], lines[i] })
	return &Log{lines: lines}
}

// FullLog returns a log that exercises every record kind. Every reference
// it makes is eventually declared, so it replays to completion in any order.
func FullLog() *Log {
	return NewLog(
		"Utility 1",
		"Processor 1 1 0",
		"Processor 2 0 1",
		"Memory 3 1024",
		"Memory 4 2048",
		"Processor Memory 2 3 100 5",
		"Memory Memory 3 4 50 10",
		"Index Space 1",
		"Index Partition 1 2 1 0",
		"Index Subspace 2 3 0",
		"Index Subspace 2 4 1",
		"Field Space 10",
		"Field Creation 10 101",
		"Region 1 10 7",
		"Top Task 0 1 main",
		"Individual Task 1 5 2 child",
		"Index Task 1 6 3 launcher",
		"Mapping Operation 1 4",
		"Close Operation 1 11",
		"Copy Operation 1 12",
		"Deletion Operation 1 13",
		"Index Slice 3 20",
		"Slice Slice 20 21",
		"Slice Point 21 30 1 0 0 0",
		"Point Point 30 31",
		"Logical Requirement 2 0 1 1 10 7 1 0 0",
		"Logical Requirement 3 0 0 2 10 7 2 0 0",
		"Logical Requirement Field 2 0 101",
		"Mapping Dependence 1 2 0 3 0 1",
		"Task Instance Requirement 2 0 1",
		"Event Event 1 1 2 1",
		"Implicit Event 2 1 3 1",
		"Op Events 2 1 1 2 1",
		"Physical Instance 40 3 1 101 7",
		"Reduction Instance 41 4 1 101 7 1 0",
		"Copy Events 40 41 1 101 7 2 1 3 1 0 101",
		"Op Instance User 2 0 40",
	)
}
