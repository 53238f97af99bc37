package resolver

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/recipes" //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the resolver Graft node.
const NodeID graft.ID = "engine.resolver"

func init() {
	graft.Register(graft.Node[*Resolver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{recipes.NodeID},
		Run: func(ctx context.Context) (*Resolver, error) {
			provider, err := graft.Dep[ports.RecipeProvider](ctx)
			if err != nil {
				return nil, err
			}
			return New(provider), nil
		},
	})
}
