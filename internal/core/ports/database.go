package ports

import (
	"io"

	"go.porto.sh/porto/internal/core/domain"
)

// Database is the persistent registry of installed packages, their file
// lists, the footprint baselines, the reject store and the lock set.
type Database interface {
	// Record returns the installed record for a package name, or nil, nil
	// when the package is not installed.
	Record(name string) (*domain.InstalledRecord, error)

	// PutRecord creates or replaces the installed record.
	PutRecord(rec domain.InstalledRecord) error

	// DeleteRecord removes the installed record. Deleting a missing record
	// is not an error.
	DeleteRecord(name string) error

	// Records returns every installed record.
	Records() ([]domain.InstalledRecord, error)

	// Owners rebuilds the ownership map, path to owning package name, by
	// scanning all installed records. At most one owner per path.
	Owners() (map[string]string, error)

	// Reject stores artifact-provided content that was not applied because
	// the on-disk version was preserved. It returns the reject-store path,
	// disambiguated with a collision suffix when the path was re-rejected.
	Reject(path string, content io.Reader) (string, error)

	// Baseline returns the recorded footprint baseline for a recipe name,
	// or nil, nil when none exists yet.
	Baseline(name string) (*domain.Footprint, error)

	// PutBaseline records the footprint baseline for a recipe name.
	PutBaseline(name string, fp domain.Footprint) error

	// Locked returns the set of package names excluded from automatic
	// upgrade consideration.
	Locked() (map[string]bool, error)

	// Lock adds a name to the lock set. Locking a locked name is a no-op.
	Lock(name string) error

	// Unlock removes a name from the lock set.
	Unlock(name string) error
}

// ProcessLock is the single advisory, non-blocking guard over all mutating
// operations against one package database instance.
type ProcessLock interface {
	// Acquire takes the lock or fails immediately with domain.ErrLockHeld.
	Acquire() error

	// Release drops the lock. Safe to call after a failed Acquire.
	Release() error
}
