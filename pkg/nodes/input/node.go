// Package input provides the node that seeds a run with the session
// payload and any static values configured on the canvas.
package input

import (
	"context"
)

// InputNode exposes its configured values, merged with the job payload the
// runner injects under the "payload" key, as its output fields.
type InputNode struct {
	id     string
	values map[string]any
}

func NewInputNode(id string, config map[string]any) (*InputNode, error) {
	values := make(map[string]any)

	if configured, ok := config["values"].(map[string]any); ok {
		for k, v := range configured {
			values[k] = v
		}
	}

	// Payload fields win over static canvas values of the same name.
	if payload, ok := config["payload"].(map[string]any); ok {
		for k, v := range payload {
			values[k] = v
		}
	}

	return &InputNode{id: id, values: values}, nil
}

func (n *InputNode) ID() string {
	return n.id
}

func (n *InputNode) Execute(_ context.Context) (map[string]any, error) {
	return n.values, nil
}
