// Package telemetry provides the no-op progress recorder used when the
// progress tape is disabled.
package telemetry

import (
	"context"
	"io"

	"go.porto.sh/porto/internal/core/ports"
)

var _ ports.Telemetry = (*NoOp)(nil)

// NoOp is a telemetry implementation that records nothing.
type NoOp struct{}

// NewNoOp creates a NoOp telemetry.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Record returns a vertex that discards everything.
func (t *NoOp) Record(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, &noOpVertex{}
}

// Close does nothing.
func (t *NoOp) Close() error { return nil }

type noOpVertex struct{}

func (v *noOpVertex) Stdout() io.Writer { return io.Discard }
func (v *noOpVertex) Stderr() io.Writer { return io.Discard }
func (v *noOpVertex) Complete(error)    {}
func (v *noOpVertex) Cached()           {}
