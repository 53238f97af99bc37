// Package inspect implements dynamic link inspection via the system ldd.
package inspect

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.porto.sh/porto/internal/core/ports"
)

var _ ports.LinkInspector = (*LddInspector)(nil)

// LddInspector implements ports.LinkInspector by parsing ldd output. It is a
// best-effort capability: when ldd is missing, or the target is not a dynamic
// binary, it reports nothing broken.
type LddInspector struct {
	binary string
}

// NewLddInspector creates an inspector using ldd from PATH.
func NewLddInspector() *LddInspector {
	return &LddInspector{binary: "ldd"}
}

// BrokenLibs returns the shared library names ldd reports as not found.
func (i *LddInspector) BrokenLibs(ctx context.Context, binPath string) ([]string, error) {
	if _, err := exec.LookPath(i.binary); err != nil {
		return nil, nil
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, i.binary, binPath) //nolint:gosec // fixed tool, path from package records
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		// ldd exits non-zero for static binaries and scripts.
		return nil, nil //nolint:nilerr // non-dynamic targets have nothing to inspect
	}

	var broken []string
	for _, line := range strings.Split(out.String(), "\n") {
		if !strings.Contains(line, "not found") {
			continue
		}
		// "libfoo.so.1 => not found"
		lib, _, ok := strings.Cut(strings.TrimSpace(line), " ")
		if ok && lib != "" {
			broken = append(broken, lib)
		}
	}
	return broken, nil
}
