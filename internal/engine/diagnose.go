package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
)

// Diagnosis explains a stall. It is advisory and never changes the verdict.
type Diagnosis struct {
	// Missing lists entities that unresolved records wait for but that no
	// unresolved record would declare. They never appeared in the log.
	Missing []MissingRef `json:"missing,omitempty"`

	// Cycles lists groups of unresolved records that wait on each other,
	// as line-number paths ending where they started.
	Cycles [][]int64 `json:"cycles,omitempty"`
}

// MissingRef is one entity nobody declared, with the lines waiting on it.
type MissingRef struct {
	Ref   state.Ref `json:"ref"`
	Lines []int64   `json:"lines"`
}

// Hints renders the diagnosis as short human-readable lines.
func (d Diagnosis) Hints() []string {
	var hints []string
	for _, m := range d.Missing {
		hints = append(hints, fmt.Sprintf("%s never declared (needed by line %s)", m.Ref, joinLines(m.Lines)))
	}
	for _, c := range d.Cycles {
		hints = append(hints, fmt.Sprintf("dependency cycle through lines %s", joinLinesArrow(c)))
	}
	return hints
}

func joinLines(lines []int64) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%d", l)
	}
	return strings.Join(parts, ", ")
}

func joinLinesArrow(lines []int64) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%d", l)
	}
	return strings.Join(parts, " → ")
}

// RefChecker is implemented by states that can answer existence queries.
// When available, Diagnose skips references that are already committed.
type RefChecker interface {
	Has(ref state.Ref) bool
}

// Diagnose classifies the unresolved records of a stall.
//
// The algorithm:
//  1. Index which unresolved record declares which entity
//  2. For each required entity: if an unresolved record declares it, add an
//     edge waiter → declarer; otherwise, unless it already exists, it is missing
//  3. Use Tarjan's algorithm to find strongly connected components
//  4. Report each SCC with size > 1 or a self-loop as a cycle
func Diagnose(unresolved []ir.Record, checker RefChecker) Diagnosis {
	declaredBy := make(map[state.Ref][]int)
	for i, rec := range unresolved {
		for _, r := range state.Declares(rec) {
			declaredBy[r] = append(declaredBy[r], i)
		}
	}

	graph := make(waitGraph, len(unresolved))
	missing := make(map[state.Ref][]int64)
	var missingOrder []state.Ref

	for i, rec := range unresolved {
		graph[i] = []int{}
		for _, r := range state.Requires(rec) {
			if declarers, ok := declaredBy[r]; ok {
				graph[i] = append(graph[i], declarers...)
				continue
			}
			if checker != nil && checker.Has(r) {
				continue
			}
			if _, seen := missing[r]; !seen {
				missingOrder = append(missingOrder, r)
			}
			missing[r] = append(missing[r], rec.Line)
		}
	}

	var diag Diagnosis
	for _, r := range missingOrder {
		diag.Missing = append(diag.Missing, MissingRef{Ref: r, Lines: missing[r]})
	}

	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			path := reconstructCyclePath(scc, graph)
			lines := make([]int64, len(path))
			for i, n := range path {
				lines[i] = unresolved[n].Line
			}
			diag.Cycles = append(diag.Cycles, lines)
		}
	}
	slices.SortFunc(diag.Cycles, func(a, b []int64) int {
		return slices.Compare(a, b)
	})
	return diag
}

// waitGraph maps record index → indices of records it waits on.
type waitGraph map[int][]int

func hasSelfLoop(node int, graph waitGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in ascending order so results are deterministic.
func tarjanSCC(graph waitGraph) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]int, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// reconstructCyclePath walks SCC members from the lowest node until it
// returns to it.
func reconstructCyclePath(scc []int, graph waitGraph) []int {
	members := make(map[int]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []int{current}
	visited := make(map[int]bool)

	for {
		visited[current] = true
		next := -1
		for _, w := range graph[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next < 0 {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
