// Package output provides the node that collects resolved fields into the
// final report section the session service reads back from the job.
package output

import (
	"context"
	"errors"

	"github.com/loomworks/loom/pkg/protocol"
)

// OutputNode republishes its rendered fields; the runner aggregates output
// node results into the job result.
type OutputNode struct {
	id     string
	fields map[string]any
}

func NewOutputNode(id string, config map[string]any) (*OutputNode, error) {
	fields, ok := config["fields"].(map[string]any)
	if !ok {
		return nil, protocol.NewConfigError(id, errors.New("missing required field 'fields'"))
	}

	return &OutputNode{id: id, fields: fields}, nil
}

func (n *OutputNode) ID() string {
	return n.id
}

func (n *OutputNode) Execute(_ context.Context) (map[string]any, error) {
	return n.fields, nil
}
