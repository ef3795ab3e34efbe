package models

// NodeType tags a node with its behavior. The set is closed: unknown types
// fail graph validation before a run starts.
type NodeType string

const (
	NodeTypeInput     NodeType = "input"     // Seeds the run with session answers
	NodeTypeLLM       NodeType = "llm"       // Calls a model provider
	NodeTypeTransform NodeType = "transform" // Template/transform step
	NodeTypeRouter    NodeType = "router"    // Conditional branch selection
	NodeTypeOutput    NodeType = "output"    // Collects fields into the report
)

// KnownNodeTypes lists every valid node type tag.
var KnownNodeTypes = []NodeType{
	NodeTypeInput,
	NodeTypeLLM,
	NodeTypeTransform,
	NodeTypeRouter,
	NodeTypeOutput,
}

// IsKnownNodeType reports whether t is a member of the closed variant set.
func IsKnownNodeType(t NodeType) bool {
	for _, known := range KnownNodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Node is one vertex of a project graph. Config is type-specific and is
// parsed into a typed struct by the node's factory before execution; values
// inside it may contain {{placeholder}} tokens.
type Node struct {
	ID        string         `json:"id"     validate:"required"`
	Type      NodeType       `json:"type"   validate:"required"`
	PositionX float64        `json:"position_x"`
	PositionY float64        `json:"position_y"`
	Config    map[string]any `json:"config"`
}

// Edge is a directed connection between two nodes. Edges are the only legal
// variable-reachability relation: a node may only reference outputs of nodes
// it can reach backwards through edges.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// GlobalVariable is a named project-scoped value. Typed values are stored
// JSON-encoded; Description and Folder are organizational only.
type GlobalVariable struct {
	Name        string `json:"name"  validate:"required"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Folder      string `json:"folder,omitempty"`
}
