package domain

import "go.trai.ch/zerr"

var (
	// ErrRecipeNotFound is returned when a package name cannot be resolved to a recipe.
	ErrRecipeNotFound = zerr.New("recipe not found")

	// ErrCycleDetected is returned when the dependency graph contains a cycle.
	ErrCycleDetected = zerr.New("dependency cycle detected")

	// ErrChecksumMismatch is returned when a fetched source does not match its declared checksum.
	ErrChecksumMismatch = zerr.New("source checksum mismatch")

	// ErrBuildFailed is returned when a recipe's build instructions exit non-zero.
	ErrBuildFailed = zerr.New("build failed")

	// ErrFootprintMismatch is returned when a staging tree diverges from the recorded footprint baseline.
	ErrFootprintMismatch = zerr.New("footprint mismatch")

	// ErrOwnershipConflict is returned when an install would claim paths owned by
	// another package or present but unowned on the filesystem.
	ErrOwnershipConflict = zerr.New("file ownership conflict")

	// ErrNotInstalled is returned when an operation targets a package that has no installed record.
	ErrNotInstalled = zerr.New("package not installed")

	// ErrLockHeld is returned immediately when the process lock is already held
	// by another mutating operation.
	ErrLockHeld = zerr.New("database lock held")

	// ErrArtifactNotFound is returned when the binary cache has no artifact for an identity.
	ErrArtifactNotFound = zerr.New("artifact not found")

	// ErrNoTargetsSpecified is returned when an operation is invoked without package names.
	ErrNoTargetsSpecified = zerr.New("no targets specified")
)
