package policy

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the preserve policy Graft node.
const NodeID graft.ID = "adapter.policy.preserve"

func init() {
	graft.Register(graft.Node[ports.PreservePolicy]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.PreservePolicy, error) {
			return NewDefault(), nil
		},
	})
}
