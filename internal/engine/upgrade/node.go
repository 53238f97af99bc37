package upgrade

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/classify" //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/logger"   //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/pkgdb"    //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/recipes"  //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/core/ports"
	"go.porto.sh/porto/internal/engine/installer"
	"go.porto.sh/porto/internal/engine/pipeline"
	"go.porto.sh/porto/internal/engine/resolver"
)

// NodeID is the unique identifier for the upgrade orchestrator Graft node.
const NodeID graft.ID = "engine.upgrade"

func init() {
	graft.Register(graft.Node[*Orchestrator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			recipes.NodeID,
			pkgdb.NodeID,
			resolver.NodeID,
			pipeline.NodeID,
			installer.NodeID,
			classify.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Orchestrator, error) {
			provider, err := graft.Dep[ports.RecipeProvider](ctx)
			if err != nil {
				return nil, err
			}
			db, err := graft.Dep[ports.Database](ctx)
			if err != nil {
				return nil, err
			}
			res, err := graft.Dep[*resolver.Resolver](ctx)
			if err != nil {
				return nil, err
			}
			pipe, err := graft.Dep[*pipeline.Pipeline](ctx)
			if err != nil {
				return nil, err
			}
			ins, err := graft.Dep[*installer.Installer](ctx)
			if err != nil {
				return nil, err
			}
			classifier, err := graft.Dep[ports.WaveClassifier](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(provider, db, res, pipe, ins, classifier, log), nil
		},
	})
}
