// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scheduler

import (
	"fmt"
	"sort"
)

// Edge records that task From depends on task To.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

func (e Edge) String() string { return fmt.Sprintf("%s -> %s", e.From, e.To) }

// graph is an arena of task nodes with index-based dependency edges.
type graph struct {
	ids      []string
	priority []int
	deps     [][]int    // deps[i] lists the nodes i depends on
	missing  [][]string // dependency ids absent from the task set
	broken   map[[2]int]bool
}

func newGraph(ids []string, priorities []int, deps [][]string) (*graph, error) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("task %d has an empty id", i)
		}
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("duplicate task id %q", id)
		}
		index[id] = i
	}

	g := &graph{
		ids:      ids,
		priority: priorities,
		deps:     make([][]int, len(ids)),
		missing:  make([][]string, len(ids)),
		broken:   map[[2]int]bool{},
	}
	for i, ds := range deps {
		seen := map[int]bool{}
		for _, d := range ds {
			j, ok := index[d]
			switch {
			case !ok:
				g.missing[i] = append(g.missing[i], d)
			case j == i:
				// A self-dependency is the smallest cycle.
				g.broken[[2]int{i, i}] = true
			case !seen[j]:
				seen[j] = true
				g.deps[i] = append(g.deps[i], j)
			}
		}
	}
	return g, nil
}

// liveDeps returns the dependencies of i that were not dropped to break a
// cycle.
func (g *graph) liveDeps(i int) []int {
	out := make([]int, 0, len(g.deps[i]))
	for _, d := range g.deps[i] {
		if !g.broken[[2]int{i, d}] {
			out = append(out, d)
		}
	}
	return out
}

// brokenEdges lists the dropped edges in a stable order.
func (g *graph) brokenEdges() []Edge {
	edges := make([]Edge, 0, len(g.broken))
	for e := range g.broken {
		edges = append(edges, Edge{From: g.ids[e[0]], To: g.ids[e[1]]})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// topoOrder returns node indices in dependency order using Kahn's algorithm,
// always taking the lowest-index ready node so input order is preserved
// where dependencies allow. When every remaining node waits on another, one
// edge on a cycle is dropped and reported through onBreak.
func (g *graph) topoOrder(onBreak func(Edge, []string)) []int {
	n := len(g.ids)
	inDegree := make([]int, n)
	dependents := make([][]int, n)
	for i := range g.ids {
		for _, d := range g.liveDeps(i) {
			inDegree[i]++
			dependents[d] = append(dependents[d], i)
		}
	}

	done := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}

		if next == -1 {
			from, to, path := g.findCycle(done)
			g.broken[[2]int{from, to}] = true
			inDegree[from]--
			if onBreak != nil {
				onBreak(Edge{From: g.ids[from], To: g.ids[to]}, path)
			}
			continue
		}

		done[next] = true
		order = append(order, next)
		for _, dep := range dependents[next] {
			if !g.broken[[2]int{dep, next}] {
				inDegree[dep]--
			}
		}
	}
	return order
}

// findCycle walks live dependency edges among unfinished nodes and returns
// the edge that closes the first cycle found, plus the cycle path.
func (g *graph) findCycle(done []bool) (from, to int, path []string) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.ids))
	parent := make([]int, len(g.ids))
	from, to = -1, -1

	var dfs func(i int) bool
	dfs = func(i int) bool {
		color[i] = gray
		for _, d := range g.liveDeps(i) {
			if done[d] {
				continue
			}
			if color[d] == gray {
				from, to = i, d
				path = []string{g.ids[d]}
				for cur := i; cur != d; cur = parent[cur] {
					path = append(path, g.ids[cur])
				}
				path = append(path, g.ids[d])
				for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
					path[l], path[r] = path[r], path[l]
				}
				return true
			}
			if color[d] == white {
				parent[d] = i
				if dfs(d) {
					return true
				}
			}
		}
		color[i] = black
		return false
	}

	for i := range g.ids {
		if !done[i] && color[i] == white && dfs(i) {
			return from, to, path
		}
	}
	// Unreachable while every unfinished node has a live dependency.
	for i := range g.ids {
		if !done[i] {
			for _, d := range g.liveDeps(i) {
				if !done[d] {
					return i, d, []string{g.ids[i], g.ids[d]}
				}
			}
		}
	}
	panic("scheduler: no cycle among blocked tasks")
}

// prioritize stable-sorts a topological order by ascending priority.
func (g *graph) prioritize(order []int) []int {
	out := make([]int, len(order))
	copy(out, order)
	sort.SliceStable(out, func(a, b int) bool {
		return g.priority[out[a]] < g.priority[out[b]]
	})
	return out
}
