package kgraph

import (
	"sort"

	"github.com/yungbote/curricula-backend/internal/domain"
)

// breakCycles repairs the prerequisite subgraph to a DAG. Each detected cycle
// loses its lowest-confidence edge; the process repeats until a topological
// order exists. Input order is preserved for kept edges, and dropped edges
// are returned for the review list.
func breakCycles(edges []domain.GraphEdge) (kept, dropped []domain.GraphEdge) {
	working := make([]domain.GraphEdge, len(edges))
	copy(working, edges)

	for {
		cycle := findCycle(working)
		if cycle == nil {
			break
		}
		weakest := cycle[0]
		for _, idx := range cycle[1:] {
			if working[idx].Confidence < working[weakest].Confidence {
				weakest = idx
			}
		}
		dropped = append(dropped, working[weakest])
		working = append(working[:weakest], working[weakest+1:]...)
	}
	return working, dropped
}

// findCycle returns the indices of edges forming one cycle, or nil when the
// graph is acyclic. DFS over a deterministic adjacency order.
func findCycle(edges []domain.GraphEdge) []int {
	adj := map[string][]int{}
	nodes := map[string]struct{}{}
	for i, e := range edges {
		adj[e.From] = append(adj[e.From], i)
		nodes[e.From] = struct{}{}
		nodes[e.To] = struct{}{}
	}
	starts := make([]string, 0, len(nodes))
	for n := range nodes {
		starts = append(starts, n)
	}
	sort.Strings(starts)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []int // edge indices along the current path

	var dfs func(n string) []int
	dfs = func(n string) []int {
		color[n] = gray
		for _, ei := range adj[n] {
			next := edges[ei].To
			switch color[next] {
			case gray:
				// Found a back edge; the cycle is the path suffix from next.
				cycle := []int{ei}
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append(cycle, stack[i])
					if edges[stack[i]].From == next {
						break
					}
				}
				return cycle
			case white:
				stack = append(stack, ei)
				if c := dfs(next); c != nil {
					return c
				}
				stack = stack[:len(stack)-1]
			}
		}
		color[n] = black
		return nil
	}

	for _, s := range starts {
		if color[s] == white {
			if c := dfs(s); c != nil {
				return c
			}
		}
	}
	return nil
}
