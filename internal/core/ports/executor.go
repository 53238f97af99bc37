package ports

import (
	"context"
	"io"
)

// ExecOptions configures one build-instruction invocation.
type ExecOptions struct {
	// Dir is the working directory for the command.
	Dir string

	// Env holds variables applied on top of the process environment,
	// highest priority last.
	Env map[string]string

	// Stdout and Stderr receive the command's output streams. When nil the
	// executor routes output through its logger.
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs a recipe's opaque build instructions. The core never inspects
// their internals, only the exit status and the resulting staging tree.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs one argv vector and blocks until it exits. A non-zero
	// exit status is returned as an error carrying the exit code.
	Execute(ctx context.Context, argv []string, opts ExecOptions) error
}
