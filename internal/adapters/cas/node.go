package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/config" //nolint:depguard // Wired in adapter wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the artifact store Graft node.
const NodeID graft.ID = "adapter.cas.store"

func init() {
	graft.Register(graft.Node[ports.ArtifactStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.ArtifactStore, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(settings.ArtifactDir()), nil
		},
	})
}
