// Package policy implements the preserve policy consulted before files are
// overwritten or removed.
package policy

import (
	"strings"

	"go.porto.sh/porto/internal/core/ports"
)

var _ ports.PreservePolicy = (*PrefixPolicy)(nil)

// PrefixPolicy preserves existing files under configured path prefixes, but
// only on upgrades. Fresh installs always apply the packaged version since
// there is no local state worth keeping.
type PrefixPolicy struct {
	prefixes []string
}

// NewDefault creates a policy preserving configuration under /etc/.
func NewDefault() *PrefixPolicy {
	return New("/etc/")
}

// New creates a policy preserving files under the given prefixes.
func New(prefixes ...string) *PrefixPolicy {
	return &PrefixPolicy{prefixes: prefixes}
}

// Preserve reports whether the on-disk file at path must survive the event.
func (p *PrefixPolicy) Preserve(path string, event ports.InstallEvent) bool {
	if event != ports.EventUpgrade {
		return false
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
