// Package protocol defines the interfaces and contracts for executable nodes
// and model providers.
package protocol

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

// Node is one executable unit of a project graph. Implementations receive
// their fully-rendered configuration at creation time and must not mutate
// any shared state: outputs are returned to the graph runner, which is the
// sole writer of execution results.
type Node interface {
	// ID returns the node's id within its project.
	ID() string

	// Execute runs the node's behavior and returns its output fields.
	Execute(ctx context.Context) (map[string]any, error)
}

// NodeFactory creates node instances and provides metadata about the type.
type NodeFactory interface {
	// Type returns the node type tag this factory builds.
	Type() models.NodeType

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for this node type's configuration.
	Schema() map[string]any

	// Create builds a node from its rendered configuration. Configuration
	// problems surface as *NodeError with KindConfig.
	Create(ctx context.Context, id string, config map[string]any) (Node, error)
}
