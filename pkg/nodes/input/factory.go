package input

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeInput
}

func (f *Factory) Name() string {
	return "Input"
}

func (f *Factory) Description() string {
	return "Seeds the run with the session payload and configured values"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"values":  map[string]any{"type": "object"},
			"payload": map[string]any{"type": "object"},
		},
	}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewInputNode(id, config)
}
