package pipeline

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/fetch"     //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/pkgdb"     //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/shell"     //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the build pipeline Graft node.
const NodeID graft.ID = "engine.pipeline"

func init() {
	graft.Register(graft.Node[*Pipeline]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fetch.NodeID,
			cas.NodeID,
			pkgdb.NodeID,
			shell.NodeID,
			telemetry.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Pipeline, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			fetcher, err := graft.Dep[ports.SourceFetcher](ctx)
			if err != nil {
				return nil, err
			}
			store, err := graft.Dep[ports.ArtifactStore](ctx)
			if err != nil {
				return nil, err
			}
			db, err := graft.Dep[ports.Database](ctx)
			if err != nil {
				return nil, err
			}
			exec, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			tel, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			cfg := Config{
				BuildRoot: settings.BuildRoot(),
				Prefix:    settings.Prefix,
				LogDir:    settings.LogDir(),
				Jobs:      settings.Jobs,
			}
			return New(cfg, fetcher, store, db, exec, tel, log), nil
		},
	})
}
