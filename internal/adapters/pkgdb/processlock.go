package pkgdb

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

var _ ports.ProcessLock = (*FlockGuard)(nil)

// FlockGuard implements ports.ProcessLock with a non-blocking flock on a
// pid file under the database root. The advisory lock dies with the holding
// process, so a crashed run never wedges the database.
type FlockGuard struct {
	path string
	file *os.File
}

// NewFlockGuard creates a guard over the database root's lock file.
func NewFlockGuard(dbRoot string) *FlockGuard {
	return &FlockGuard{path: filepath.Join(dbRoot, "lock.pid")}
}

// Acquire takes the lock or fails immediately with domain.ErrLockHeld
// carrying the holder's pid when it can be read.
func (g *FlockGuard) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create database directory")
	}

	f, err := os.OpenFile(g.path, os.O_RDWR|os.O_CREATE, 0o640) //nolint:gosec // db-internal path
	if err != nil {
		return zerr.Wrap(err, "failed to open lock file")
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			held := zerr.Wrap(domain.ErrLockHeld, "another operation is running")
			if data, readErr := os.ReadFile(g.path); readErr == nil {
				if pid := strings.TrimSpace(string(data)); pid != "" {
					held = zerr.With(held, "holder_pid", pid)
				}
			}
			return held
		}
		return zerr.Wrap(err, "failed to lock database")
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	g.file = f
	return nil
}

// Release drops the lock. Safe to call after a failed Acquire.
func (g *FlockGuard) Release() error {
	if g.file == nil {
		return nil
	}
	f := g.file
	g.file = nil
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return zerr.Wrap(err, "failed to unlock database")
	}
	if err := f.Close(); err != nil {
		return zerr.Wrap(err, "failed to close lock file")
	}
	return nil
}
