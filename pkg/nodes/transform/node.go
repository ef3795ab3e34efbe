// Package transform provides the node that reshapes already-resolved values
// into new output fields without calling any external service.
package transform

import (
	"context"
	"errors"

	"github.com/loomworks/loom/pkg/protocol"
)

// TransformNode republishes its rendered "output" mapping as node output.
// All placeholder substitution has happened before the node is created, so
// execution is a pure copy.
type TransformNode struct {
	id     string
	output map[string]any
}

func NewTransformNode(id string, config map[string]any) (*TransformNode, error) {
	switch out := config["output"].(type) {
	case map[string]any:
		return &TransformNode{id: id, output: out}, nil
	case string:
		return &TransformNode{id: id, output: map[string]any{"text": out}}, nil
	case nil:
		return nil, protocol.NewConfigError(id, errors.New("missing required field 'output'"))
	default:
		return &TransformNode{id: id, output: map[string]any{"text": out}}, nil
	}
}

func (n *TransformNode) ID() string {
	return n.id
}

func (n *TransformNode) Execute(_ context.Context) (map[string]any, error) {
	return n.output, nil
}
