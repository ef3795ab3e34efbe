package router

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
	return models.NodeTypeRouter
}

func (f *Factory) Name() string {
	return "Router"
}

func (f *Factory) Description() string {
	return "Routes execution by comparing a value against configured cases"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"value", "cases"},
		"properties": map[string]any{
			"value": map[string]any{},
			"cases": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"value", "route"},
					"properties": map[string]any{
						"value": map[string]any{"type": "string"},
						"route": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewRouterNode(id, config)
}
