// Package callgraph reconstructs an approximate call graph for a C
// firmware build and solves worst-case stack depth over it.
//
// The graph is keyed by bare function name. That matches the edge
// source: calls recovered from source text carry no file or signature
// information, so two static functions with the same name in different
// files collapse into one node. Collisions are recorded and surfaced
// rather than silently ignored.
package callgraph

import (
	"sort"

	"github.com/lgili/stacklens/internal/su"
)

// Graph holds per-function stack records and directed call edges.
// Callee lists preserve first-seen order, which keeps path solving
// deterministic for a given input order.
type Graph struct {
	functions  map[string]su.Record
	calls      map[string][]string
	seen       map[string]map[string]bool
	duplicates map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		functions:  make(map[string]su.Record),
		calls:      make(map[string][]string),
		seen:       make(map[string]map[string]bool),
		duplicates: make(map[string]int),
	}
}

// AddFunction registers a stack record under its function name.
// A later record for the same name wins and the collision is counted;
// the name key cannot distinguish same-named statics from different
// translation units.
func (g *Graph) AddFunction(rec su.Record) {
	if _, ok := g.functions[rec.Function]; ok {
		g.duplicates[rec.Function]++
	}
	g.functions[rec.Function] = rec
}

// Function returns the record registered for name.
func (g *Graph) Function(name string) (su.Record, bool) {
	rec, ok := g.functions[name]
	return rec, ok
}

// Functions returns all names with records, sorted.
func (g *Graph) Functions() []string {
	names := make([]string, 0, len(g.functions))
	for name := range g.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of functions with records.
func (g *Graph) Len() int { return len(g.functions) }

// AddCall records a caller→callee edge. Duplicate edges are dropped;
// the first occurrence fixes the callee's position in the list.
func (g *Graph) AddCall(caller, callee string) {
	if g.seen[caller] == nil {
		g.seen[caller] = make(map[string]bool)
	}
	if g.seen[caller][callee] {
		return
	}
	g.seen[caller][callee] = true
	g.calls[caller] = append(g.calls[caller], callee)
}

// Callees returns caller's callees in first-seen order.
func (g *Graph) Callees(caller string) []string {
	callees := g.calls[caller]
	if len(callees) == 0 {
		return nil
	}
	out := make([]string, len(callees))
	copy(out, callees)
	return out
}

// Callers returns every function with outgoing edges, sorted.
func (g *Graph) Callers() []string {
	callers := make([]string, 0, len(g.calls))
	for name := range g.calls {
		callers = append(callers, name)
	}
	sort.Strings(callers)
	return callers
}

// EdgeCount reports the number of distinct call edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, callees := range g.calls {
		n += len(callees)
	}
	return n
}

// Duplicates returns the names that carried more than one stack
// record, sorted. Reports should surface these: their frame sizes are
// whichever record was added last.
func (g *Graph) Duplicates() []string {
	names := make([]string, 0, len(g.duplicates))
	for name := range g.duplicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntryPoints returns functions that have a stack record but never
// appear as a callee, sorted. On firmware images these are the task
// roots and interrupt handlers worth solving paths for.
func (g *Graph) EntryPoints() []string {
	called := make(map[string]bool)
	for _, callees := range g.calls {
		for _, callee := range callees {
			called[callee] = true
		}
	}

	var entries []string
	for name := range g.functions {
		if !called[name] {
			entries = append(entries, name)
		}
	}
	sort.Strings(entries)
	return entries
}
