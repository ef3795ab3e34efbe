// Package variables resolves {{placeholder}} references against a run
// snapshot: frozen global variables plus the node outputs accumulated so
// far. Resolution never touches live project state, so a run is
// reproducible from its snapshot alone.
package variables

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/loomworks/loom/pkg/graph"
)

// Kind classifies how a placeholder was (or was not) resolved.
type Kind string

const (
	KindGlobal     Kind = "global"      // Matches a global variable from the snapshot
	KindNodeOutput Kind = "node_output" // Output of a direct predecessor
	KindTransitive Kind = "transitive"  // Output of a path-reachable, executed node
	KindPending    Kind = "pending"     // Reachable node that has not yet executed
	KindMissing    Kind = "missing"     // No legal source
)

// Resolution is the outcome of resolving one placeholder for one node.
type Resolution struct {
	Name       string
	Kind       Kind
	Value      any
	SourceNode string // Set for node-output and transitive resolutions
	Field      string
}

// Resolved reports whether the resolution carries a usable value.
func (r Resolution) Resolved() bool {
	return r.Kind == KindGlobal || r.Kind == KindNodeOutput || r.Kind == KindTransitive
}

// Err returns the resolution failure as an error, or nil when resolved.
func (r Resolution) Err() error {
	switch r.Kind {
	case KindPending:
		return &ResolutionError{Name: r.Name, Kind: KindPending}
	case KindMissing:
		return &ResolutionError{Name: r.Name, Kind: KindMissing}
	default:
		return nil
	}
}

// ResolutionError is a per-node, non-fatal failure: the runner records it
// and skips (Missing) or defers (Pending) the node, never aborting the run.
type ResolutionError struct {
	Name string
	Kind Kind
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("variable %q is %s", e.Name, e.Kind)
}

// Resolver resolves placeholders for nodes of a single run.
type Resolver struct {
	graph    *graph.Graph
	globals  map[string]string
	results  map[string]map[string]any
	executed map[string]bool
}

// NewResolver builds a resolver over the run's graph and its frozen global
// variable snapshot.
func NewResolver(g *graph.Graph, globalsSnapshot map[string]string) *Resolver {
	return &Resolver{
		graph:    g,
		globals:  globalsSnapshot,
		results:  make(map[string]map[string]any),
		executed: make(map[string]bool),
	}
}

// RecordResult stores a node's output so downstream nodes can reference it.
// The graph runner is the only caller.
func (r *Resolver) RecordResult(nodeID string, output map[string]any) {
	r.executed[nodeID] = true

	if output != nil {
		r.results[nodeID] = output
	}
}

// MarkExecuted records that a node reached a terminal status without output
// (failed or skipped), so references to it resolve Missing, not Pending.
func (r *Resolver) MarkExecuted(nodeID string) {
	r.executed[nodeID] = true
}

// Results returns the accumulated per-node output map.
func (r *Resolver) Results() map[string]map[string]any {
	return r.results
}

// Resolve classifies the placeholder name for the node being evaluated.
// Priority: global variable, then direct-predecessor output, then
// transitive reachable output, then pending, then missing. Node-output
// references are only ever honored along a directed path into the
// evaluating node: a node elsewhere in the graph exporting the same field
// name never leaks in.
func (r *Resolver) Resolve(evaluatingNode, name string) Resolution {
	if value, ok := r.globals[name]; ok {
		return Resolution{Name: name, Kind: KindGlobal, Value: DecodeValue(value)}
	}

	if sourceID, field, ok := splitQualified(name); ok && r.graph.Node(sourceID) != nil {
		return r.resolveQualified(evaluatingNode, name, sourceID, field)
	}

	return r.resolveBare(evaluatingNode, name)
}

// resolveQualified handles "<nodeID>.<field>" references.
func (r *Resolver) resolveQualified(evaluatingNode, name, sourceID, field string) Resolution {
	direct := r.hasDirectEdge(sourceID, evaluatingNode)

	if !direct && !r.graph.HasPath(sourceID, evaluatingNode) {
		// Unconnected node: never invent a value, even if it exists.
		return Resolution{Name: name, Kind: KindMissing}
	}

	if !r.executed[sourceID] {
		return Resolution{Name: name, Kind: KindPending, SourceNode: sourceID, Field: field}
	}

	output, ok := r.results[sourceID]
	if !ok {
		return Resolution{Name: name, Kind: KindMissing}
	}

	value, ok := output[field]
	if !ok {
		return Resolution{Name: name, Kind: KindMissing}
	}

	kind := KindTransitive
	if direct {
		kind = KindNodeOutput
	}

	return Resolution{Name: name, Kind: kind, Value: value, SourceNode: sourceID, Field: field}
}

// resolveBare handles unqualified names: an output key of a predecessor,
// searched breadth-first from direct predecessors backwards so the nearest
// executed source wins.
func (r *Resolver) resolveBare(evaluatingNode, name string) Resolution {
	visited := make(map[string]bool)
	frontier := r.graph.Predecessors(evaluatingNode)
	depth := 0

	for len(frontier) > 0 {
		var next []string

		for _, sourceID := range frontier {
			if visited[sourceID] {
				continue
			}

			visited[sourceID] = true

			if r.executed[sourceID] {
				if output, ok := r.results[sourceID]; ok {
					if value, ok := output[name]; ok {
						kind := KindTransitive
						if depth == 0 {
							kind = KindNodeOutput
						}

						return Resolution{
							Name:       name,
							Kind:       kind,
							Value:      value,
							SourceNode: sourceID,
							Field:      name,
						}
					}
				}
			}

			next = append(next, r.graph.Predecessors(sourceID)...)
		}

		frontier = next
		depth++
	}

	return Resolution{Name: name, Kind: KindMissing}
}

func (r *Resolver) hasDirectEdge(source, target string) bool {
	for _, pred := range r.graph.Predecessors(target) {
		if pred == source {
			return true
		}
	}

	return false
}

// splitQualified splits "<nodeID>.<field>" at the first dot.
func splitQualified(name string) (string, string, bool) {
	i := strings.IndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}

	return name[:i], name[i+1:], true
}

// DecodeValue interprets a stored global variable string. Typed values are
// JSON-encoded; plain numbers and booleans decode to their Go types, and
// anything else stays a string.
func DecodeValue(raw string) any {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, `"`) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}

	if num, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return num
	}

	if b, err := strconv.ParseBool(trimmed); err == nil {
		return b
	}

	return raw
}
