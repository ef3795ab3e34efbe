package output

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
	return models.NodeTypeOutput
}

func (f *Factory) Name() string {
	return "Output"
}

func (f *Factory) Description() string {
	return "Collects resolved fields into the run's report"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"fields"},
		"properties": map[string]any{
			"fields": map[string]any{"type": "object"},
		},
	}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewOutputNode(id, config)
}
