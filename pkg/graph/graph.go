// Package graph builds a validated DAG view over a project's nodes and edges
// and provides the deterministic traversal order the runner executes in.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loomworks/loom/pkg/models"
)

// CycleError is returned when the node/edge set contains a directed cycle.
// Cycles are a configuration error: the run never starts.
type CycleError struct {
	Cycle []string // Node ids along the cycle, in edge order
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph contains a cycle: %s", strings.Join(e.Cycle, " -> "))
}

// ValidationError is returned when the raw node/edge set is malformed
// (dangling edge endpoints, duplicate or unknown node types).
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "invalid graph: " + e.Detail
}

// Graph is an immutable-per-run adjacency view of a project's canvas.
type Graph struct {
	nodes        map[string]*models.Node
	order        []string            // Node ids in creation order
	successors   map[string][]string // Sorted, deduplicated
	predecessors map[string][]string // Sorted, deduplicated
}

// New validates the raw nodes and edges and builds the adjacency view.
// Cycle detection is deferred to TopologicalOrder so callers can still
// inspect a malformed-but-acyclic graph's structure.
func New(nodes []*models.Node, edges []*models.Edge) (*Graph, error) {
	g := &Graph{
		nodes:        make(map[string]*models.Node, len(nodes)),
		order:        make([]string, 0, len(nodes)),
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
	}

	for _, node := range nodes {
		if node.ID == "" {
			return nil, &ValidationError{Detail: "node with empty id"}
		}

		if _, exists := g.nodes[node.ID]; exists {
			return nil, &ValidationError{Detail: "duplicate node id " + node.ID}
		}

		if !models.IsKnownNodeType(node.Type) {
			return nil, &ValidationError{
				Detail: fmt.Sprintf("node %s has unknown type %q", node.ID, node.Type),
			}
		}

		g.nodes[node.ID] = node
		g.order = append(g.order, node.ID)
	}

	seen := make(map[string]bool, len(edges))

	for _, edge := range edges {
		if _, ok := g.nodes[edge.Source]; !ok {
			return nil, &ValidationError{
				Detail: fmt.Sprintf("edge %s references missing source node %s", edge.ID, edge.Source),
			}
		}

		if _, ok := g.nodes[edge.Target]; !ok {
			return nil, &ValidationError{
				Detail: fmt.Sprintf("edge %s references missing target node %s", edge.ID, edge.Target),
			}
		}

		// Parallel edges (distinct handles) collapse to one adjacency entry.
		key := edge.Source + "\x00" + edge.Target
		if seen[key] {
			continue
		}

		seen[key] = true

		g.successors[edge.Source] = append(g.successors[edge.Source], edge.Target)
		g.predecessors[edge.Target] = append(g.predecessors[edge.Target], edge.Source)
	}

	for id := range g.successors {
		sort.Strings(g.successors[id])
	}

	for id := range g.predecessors {
		sort.Strings(g.predecessors[id])
	}

	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *models.Node {
	return g.nodes[id]
}

// Predecessors returns the ids of nodes with a direct edge into id.
func (g *Graph) Predecessors(id string) []string {
	return g.predecessors[id]
}

// Successors returns the ids of nodes id has a direct edge into.
func (g *Graph) Successors(id string) []string {
	return g.successors[id]
}

// HasPath reports whether target is reachable from source via directed
// edges. A node does not reach itself unless it sits on a (invalid) cycle.
func (g *Graph) HasPath(source, target string) bool {
	if source == target {
		return false
	}

	visited := map[string]bool{source: true}
	frontier := []string{source}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		for _, next := range g.successors[current] {
			if next == target {
				return true
			}

			if !visited[next] {
				visited[next] = true
				frontier = append(frontier, next)
			}
		}
	}

	return false
}

// TopologicalOrder returns every node id exactly once, each after all its
// predecessors. Ties are broken by node creation order, so the result is
// stable for a given project. Fails with *CycleError when no valid order
// exists.
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.predecessors[id])
	}

	// ready holds creation-order positions, kept sorted for determinism.
	position := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
	}

	var ready []int

	for i, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, i)
		}
	}

	sort.Ints(ready)

	result := make([]string, 0, len(g.nodes))

	for len(ready) > 0 {
		id := g.order[ready[0]]
		ready = ready[1:]
		result = append(result, id)

		for _, next := range g.successors[id] {
			indegree[next]--
			if indegree[next] == 0 {
				pos := position[next]
				at := sort.SearchInts(ready, pos)
				ready = append(ready, 0)
				copy(ready[at+1:], ready[at:])
				ready[at] = pos
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &CycleError{Cycle: g.findCycle(indegree)}
	}

	return result, nil
}

// findCycle walks the nodes Kahn could not drain and extracts one cycle to
// name in the error.
func (g *Graph) findCycle(indegree map[string]int) []string {
	remaining := make(map[string]bool)

	for _, id := range g.order {
		if indegree[id] > 0 {
			remaining[id] = true
		}
	}

	for _, start := range g.order {
		if !remaining[start] {
			continue
		}

		// Follow successors within the remaining set until a node repeats.
		trail := []string{start}
		index := map[string]int{start: 0}
		current := start

		for {
			advanced := false

			for _, next := range g.successors[current] {
				if !remaining[next] {
					continue
				}

				if at, ok := index[next]; ok {
					cycle := append([]string{}, trail[at:]...)

					return append(cycle, next)
				}

				index[next] = len(trail)
				trail = append(trail, next)
				current = next
				advanced = true

				break
			}

			if !advanced {
				break
			}
		}
	}

	return nil
}
