package ports

import "context"

// InstallEvent distinguishes the operation consulting the preserve policy.
type InstallEvent string

const (
	// EventInstall is a fresh install of a package.
	EventInstall InstallEvent = "install"
	// EventUpgrade is an upgrade replacing an installed package.
	EventUpgrade InstallEvent = "upgrade"
)

// PreservePolicy decides whether an existing on-disk file must be preserved
// across an operation. Supplied externally; the engine only consumes it.
type PreservePolicy interface {
	Preserve(path string, event InstallEvent) bool
}

// WaveClassifier assigns upgrade candidates to ordered waves. Lower waves are
// processed first; unknown categories land in the last wave.
type WaveClassifier interface {
	// Classify returns the wave index for a package.
	Classify(name, category string) int

	// Waves returns the number of wave buckets.
	Waves() int
}

// LinkInspector reports unresolved dynamic dependencies of a binary. The
// capability is optional; implementations degrade to reporting nothing when
// no inspection tool is available.
type LinkInspector interface {
	// BrokenLibs returns the names of shared libraries the binary links
	// against that do not resolve. A nil slice means all resolve (or the
	// inspection was unavailable).
	BrokenLibs(ctx context.Context, binPath string) ([]string, error)
}
