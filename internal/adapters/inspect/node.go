package inspect

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the link inspector Graft node.
const NodeID graft.ID = "adapter.inspect.ldd"

func init() {
	graft.Register(graft.Node[ports.LinkInspector]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.LinkInspector, error) {
			return NewLddInspector(), nil
		},
	})
}
