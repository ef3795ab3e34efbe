package cmd

import (
	"log/slog"

	"github.com/loomworks/loom/pkg/nodes/input"
	"github.com/loomworks/loom/pkg/nodes/llm"
	"github.com/loomworks/loom/pkg/nodes/output"
	"github.com/loomworks/loom/pkg/nodes/router"
	"github.com/loomworks/loom/pkg/nodes/transform"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/registry"
)

// NewRegistry builds a node registry with every built-in node type.
// The llm factory is only registered when a provider is configured.
func NewRegistry(logger *slog.Logger, provider protocol.Provider) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(input.NewFactory())
	reg.Register(transform.NewFactory())
	reg.Register(router.NewFactory())
	reg.Register(output.NewFactory())

	if provider != nil {
		reg.Register(llm.NewFactory(provider))
	}

	return reg
}
