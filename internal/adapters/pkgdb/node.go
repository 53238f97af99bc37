package pkgdb

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/config" //nolint:depguard // Wired in adapter wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the package database Graft node.
const NodeID graft.ID = "adapter.pkgdb.database"

// LockNodeID is the unique identifier for the process lock Graft node.
const LockNodeID graft.ID = "adapter.pkgdb.processlock"

func init() {
	graft.Register(graft.Node[ports.Database]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.Database, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return New(settings.DBRoot()), nil
		},
	})

	graft.Register(graft.Node[ports.ProcessLock]{
		ID:        LockNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.ProcessLock, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewFlockGuard(settings.DBRoot()), nil
		},
	})
}
