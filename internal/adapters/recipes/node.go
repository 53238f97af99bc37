package recipes

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/config" //nolint:depguard // Wired in adapter wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the recipe provider Graft node.
const NodeID graft.ID = "adapter.recipes.provider"

func init() {
	graft.Register(graft.Node[ports.RecipeProvider]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.RecipeProvider, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewProvider(settings.TreeDir), nil
		},
	})
}
