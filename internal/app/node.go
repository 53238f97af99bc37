package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.porto.sh/porto/internal/adapters/pkgdb"     //nolint:depguard // Wired in app layer
	"go.porto.sh/porto/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.porto.sh/porto/internal/core/ports"
	"go.porto.sh/porto/internal/engine/installer"
	"go.porto.sh/porto/internal/engine/pipeline"
	"go.porto.sh/porto/internal/engine/resolver"
	"go.porto.sh/porto/internal/engine/upgrade"
	"go.porto.sh/porto/internal/engine/verify"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			resolver.NodeID,
			pipeline.NodeID,
			installer.NodeID,
			upgrade.NodeID,
			verify.NodeID,
			pkgdb.NodeID,
			pkgdb.LockNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
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
			upgrader, err := graft.Dep[*upgrade.Orchestrator](ctx)
			if err != nil {
				return nil, err
			}
			verifier, err := graft.Dep[*verify.Verifier](ctx)
			if err != nil {
				return nil, err
			}
			db, err := graft.Dep[ports.Database](ctx)
			if err != nil {
				return nil, err
			}
			lock, err := graft.Dep[ports.ProcessLock](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(res, pipe, ins, upgrader, verifier, db, lock, log), nil
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			telemetry.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			application, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			tel, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: application, Logger: log, Telemetry: tel}, nil
		},
	})
}
