package installer

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/pkgdb"     //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/policy"    //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the installer Graft node.
const NodeID graft.ID = "engine.installer"

func init() {
	graft.Register(graft.Node[*Installer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			cas.NodeID,
			pkgdb.NodeID,
			policy.NodeID,
			telemetry.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Installer, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
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
			preserve, err := graft.Dep[ports.PreservePolicy](ctx)
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
			return New(settings.Root, store, db, preserve, tel, log), nil
		},
	})
}
