// Package shell provides the subprocess executor for recipe build steps.
package shell

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor using os/exec. Build instructions are
// opaque external programs; the executor only supervises exit status and
// wires output to the logger or the caller's writers.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs one argv vector and blocks until it exits.
// The environment is the process environment with opts.Env applied on top.
func (e *Executor) Execute(ctx context.Context, argv []string, opts ports.ExecOptions) error {
	if len(argv) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // recipe-provided command
	cmd.Dir = opts.Dir
	cmd.Env = mergeEnvironment(os.Environ(), opts.Env)

	stdout := opts.Stdout
	stderr := opts.Stderr
	if stdout == nil {
		stdout = &logWriter{logger: e.logger, level: "info"}
	}
	if stderr == nil {
		stderr = &logWriter{logger: e.logger, level: "error"}
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		wrapped := zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
		return zerr.With(wrapped, "command", strings.Join(argv, " "))
	}

	return nil
}

// mergeEnvironment overlays override variables on the base environment,
// returning a sorted KEY=VALUE slice.
func mergeEnvironment(base []string, overrides map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overrides))
	for _, entry := range base {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range overrides {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// logWriter bridges subprocess output lines to the logger.
type logWriter struct {
	logger ports.Logger
	level  string
}

func (w *logWriter) Write(p []byte) (int, error) {
	lines := strings.Split(strings.TrimSuffix(string(p), "\n"), "\n")
	for _, line := range lines {
		if w.level == "info" {
			w.logger.Info(line)
		} else {
			w.logger.Error(zerr.New(line))
		}
	}
	return len(p), nil
}

var _ io.Writer = (*logWriter)(nil)
