package classify

import (
	"context"

	"github.com/grindlemire/graft"
	"go.porto.sh/porto/internal/core/ports"
)

// NodeID is the unique identifier for the wave classifier Graft node.
const NodeID graft.ID = "adapter.classify.classifier"

func init() {
	graft.Register(graft.Node[ports.WaveClassifier]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.WaveClassifier, error) {
			return NewDefault(), nil
		},
	})
}
