package verify

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/config"  //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/fetch"   //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/inspect" //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/logger"  //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/pkgdb"   //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/recipes" //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the verifier Graft node.
const NodeID graft.ID = "engine.verify"

func init() {
	graft.Register(graft.Node[*Verifier]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			pkgdb.NodeID,
			recipes.NodeID,
			fetch.NodeID,
			inspect.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Verifier, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			db, err := graft.Dep[ports.Database](ctx)
			if err != nil {
				return nil, err
			}
			provider, err := graft.Dep[ports.RecipeProvider](ctx)
			if err != nil {
				return nil, err
			}
			fetcher, err := graft.Dep[ports.SourceFetcher](ctx)
			if err != nil {
				return nil, err
			}
			inspector, err := graft.Dep[ports.LinkInspector](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(settings.Root, settings.Prefix, db, provider, fetcher, inspector, log), nil
		},
	})
}
