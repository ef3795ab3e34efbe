// Package registry maps node type tags to their factories and validates
// node configuration against each factory's schema before creation.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeType]protocol.NodeFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.NodeType]protocol.NodeFactory),
	}
}

// Register adds a node factory. Later registrations replace earlier ones.
func (r *Registry) Register(factory protocol.NodeFactory) {
	r.factories[factory.Type()] = factory
}

// Factory returns the factory for a node type.
func (r *Registry) Factory(nodeType models.NodeType) (protocol.NodeFactory, bool) {
	factory, ok := r.factories[nodeType]

	return factory, ok
}

// Types returns the registered node type tags.
func (r *Registry) Types() []models.NodeType {
	types := make([]models.NodeType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	return types
}

// CreateNode validates the rendered config against the factory's schema and
// builds the node. Schema violations and unknown types surface as config
// errors, which the runner records as a failed node.
func (r *Registry) CreateNode(ctx context.Context, node *models.Node, config map[string]any) (protocol.Node, error) {
	factory, ok := r.factories[node.Type]
	if !ok {
		return nil, protocol.NewConfigError(node.ID, fmt.Errorf("node type %q not registered", node.Type))
	}

	if schema := factory.Schema(); schema != nil {
		err := validateConfig(schema, config)
		if err != nil {
			return nil, protocol.NewConfigError(node.ID, err)
		}
	}

	return factory.Create(ctx, node.ID, config)
}

func validateConfig(schema map[string]any, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config: %s", strings.Join(details, "; "))
	}

	return nil
}
