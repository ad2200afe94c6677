package callgraph

import "maps"

// unknownSuffix annotates chain entries for callees without a stack
// record: library functions, assembly stubs, or misparsed identifiers.
const unknownSuffix = " (unknown)"

// Path is the worst-case result for one entry point. TotalBytes sums
// the frames along the deepest chain; Chain lists its functions in
// call order, entry first. Unknown functions contribute zero bytes
// and appear annotated, so a total over a chain with unknowns is a
// lower bound.
type Path struct {
	TotalBytes int      `json:"total_bytes"`
	Chain      []string `json:"chain"`
}

// WorstCase returns the deepest stack path reachable from entry.
//
// Each path counts a function at most once: a back edge contributes
// nothing, which both terminates recursion on cycles and models one
// activation per frame. Siblings get independent visited sets, so a
// function shared by two branches is charged on each. Ties between
// callees resolve to the earliest edge, keeping results stable for a
// given input order.
//
// The per-branch visited copy is exponential in the worst case but
// the graphs here are firmware sized, hundreds of functions at most.
func (g *Graph) WorstCase(entry string) Path {
	return g.worstFrom(entry, make(map[string]bool))
}

func (g *Graph) worstFrom(fn string, visited map[string]bool) Path {
	if visited[fn] {
		return Path{}
	}
	visited[fn] = true

	own := 0
	label := fn + unknownSuffix
	if rec, ok := g.functions[fn]; ok {
		own = rec.StackBytes
		label = fn
	}

	var best Path
	for _, callee := range g.calls[fn] {
		child := g.worstFrom(callee, maps.Clone(visited))
		if child.TotalBytes > best.TotalBytes {
			best = child
		}
	}

	chain := make([]string, 0, len(best.Chain)+1)
	chain = append(chain, label)
	chain = append(chain, best.Chain...)
	return Path{TotalBytes: own + best.TotalBytes, Chain: chain}
}
