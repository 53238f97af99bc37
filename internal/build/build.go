// Package build holds build-time metadata.
package build

// Version is the porto version string, set via linker flags for
// release builds and "dev" otherwise.
var Version = "dev"
