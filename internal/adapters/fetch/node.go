package fetch

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/adapters/config" //nolint:depguard // Wired in adapter wiring
	"go.porto.sh/porto/internal/adapters/logger" //nolint:depguard // Wired in adapter wiring
	"go.porto.sh/porto/internal/adapters/shell"  //nolint:depguard // Wired in adapter wiring
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the source fetcher Graft node.
const NodeID graft.ID = "adapter.fetch.fetcher"

func init() {
	graft.Register(graft.Node[ports.SourceFetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, shell.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.SourceFetcher, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			exec, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewFetcher(settings.SourceCacheDir(), settings.FetchRetries, exec, log), nil
		},
	})
}
