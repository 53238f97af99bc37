// Package installer applies cached artifacts to the live filesystem and
// keeps the package database's ownership invariants intact.
package installer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

// Installer installs, upgrades and removes packages under one filesystem
// root. Callers hold the process lock; the installer itself only sequences
// filesystem and database mutations so an interrupted run leaves either the
// old record or the new one, never neither.
type Installer struct {
	root      string
	store     ports.ArtifactStore
	db        ports.Database
	policy    ports.PreservePolicy
	telemetry ports.Telemetry
	logger    ports.Logger
}

// New creates an Installer rooted at root.
func New(
	root string,
	store ports.ArtifactStore,
	db ports.Database,
	policy ports.PreservePolicy,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Installer {
	return &Installer{
		root:      filepath.Clean(root),
		store:     store,
		db:        db,
		policy:    policy,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Options control how an artifact is applied and what gets recorded.
type Options struct {
	Event ports.InstallEvent

	// Force transfers conflicting paths from their current owners instead
	// of failing.
	Force bool

	// Explicit marks the registration as user-requested. An already
	// explicit package never loses the mark on upgrade.
	Explicit bool

	// Depends is recorded alongside the registration for orphan scans.
	Depends []string
}

// Install applies the identity's artifact to the live filesystem. On
// conflict every offending path is reported at once.
func (ins *Installer) Install(ctx context.Context, id domain.Identity, opts Options) error {
	_, v := ins.telemetry.Record(ctx, "install "+id.String())
	err := ins.install(id, opts)
	v.Complete(err)
	return err
}

func (ins *Installer) install(id domain.Identity, opts Options) error {
	fp, err := ins.store.Footprint(id)
	if err != nil {
		return err
	}

	prev, err := ins.db.Record(id.Name)
	if err != nil {
		return err
	}

	conflicts, err := ins.findConflicts(id.Name, fp)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		if !opts.Force {
			err := zerr.With(zerr.Wrap(domain.ErrOwnershipConflict, "install aborted"), "package", id.Name)
			return zerr.With(err, "conflicts", conflictStrings(conflicts))
		}
		if err := ins.transferOwnership(conflicts); err != nil {
			return err
		}
	}

	keep := ins.keptPaths(fp, opts.Event)

	stageDir, err := os.MkdirTemp("", "porto-install-")
	if err != nil {
		return zerr.Wrap(err, "failed to create install stage")
	}
	defer os.RemoveAll(stageDir) //nolint:errcheck // best effort cleanup

	if err := ins.store.Extract(id, stageDir); err != nil {
		return err
	}

	if prev != nil {
		if err := ins.removeOrphans(id.Name, prev, fp, keep); err != nil {
			return err
		}
	}

	if err := ins.apply(fp, stageDir, keep); err != nil {
		return err
	}

	// The record commits last: until this write the previous registration
	// stays authoritative.
	return ins.db.PutRecord(domain.InstalledRecord{
		Name:           id.Name,
		VersionRelease: id.VersionRelease(),
		Explicit:       opts.Explicit || (prev != nil && prev.Explicit),
		Depends:        opts.Depends,
		Files:          fp.Paths(),
		Footprint:      fp,
	})
}

// conflict is one path an install cannot claim cleanly.
type conflict struct {
	path  string
	owner string // empty for an unowned on-disk file
}

func conflictStrings(conflicts []conflict) []string {
	out := make([]string, len(conflicts))
	for i, c := range conflicts {
		if c.owner == "" {
			out[i] = c.path + " (unowned)"
		} else {
			out[i] = c.path + " (owned by " + c.owner + ")"
		}
	}
	return out
}

// findConflicts scans the whole footprint before anything is touched, so
// the caller sees every offending path in a single failure.
func (ins *Installer) findConflicts(name string, fp domain.Footprint) ([]conflict, error) {
	owners, err := ins.db.Owners()
	if err != nil {
		return nil, err
	}

	var conflicts []conflict
	for _, path := range fp.Paths() {
		if owner, ok := owners[path]; ok {
			if owner != name {
				conflicts = append(conflicts, conflict{path: path, owner: owner})
			}
			continue
		}
		if _, err := os.Lstat(ins.livePath(path)); err == nil {
			conflicts = append(conflicts, conflict{path: path})
		}
	}
	return conflicts, nil
}

// transferOwnership strips force-claimed paths from their current owners'
// records so every path keeps at most one owner. The losing packages stay
// installed; they just no longer own the contested paths.
func (ins *Installer) transferOwnership(conflicts []conflict) error {
	byOwner := make(map[string][]string)
	for _, c := range conflicts {
		if c.owner != "" {
			byOwner[c.owner] = append(byOwner[c.owner], c.path)
		}
	}

	for owner, paths := range byOwner {
		rec, err := ins.db.Record(owner)
		if err != nil {
			return err
		}
		if rec == nil {
			continue
		}
		lost := make(map[string]bool, len(paths))
		for _, p := range paths {
			lost[p] = true
		}
		kept := rec.Files[:0]
		for _, f := range rec.Files {
			if !lost[f] {
				kept = append(kept, f)
			}
		}
		rec.Files = kept
		if err := ins.db.PutRecord(*rec); err != nil {
			return err
		}
		ins.logger.Warn(fmt.Sprintf("transferred %d path(s) away from %s", len(paths), owner))
	}
	return nil
}

// keptPaths returns the footprint paths whose on-disk version survives the
// event per the preserve policy.
func (ins *Installer) keptPaths(fp domain.Footprint, event ports.InstallEvent) map[string]bool {
	keep := make(map[string]bool)
	for _, path := range fp.Paths() {
		if !ins.policy.Preserve(path, event) {
			continue
		}
		if _, err := os.Lstat(ins.livePath(path)); err == nil {
			keep[path] = true
		}
	}
	return keep
}

// removeOrphans deletes paths of the previous registration that the new
// footprint no longer provides. Ownership is re-verified per path right
// before deletion; anything since claimed by another package, preserved, or
// already gone is skipped.
func (ins *Installer) removeOrphans(name string, prev *domain.InstalledRecord, next domain.Footprint, keep map[string]bool) error {
	owners, err := ins.db.Owners()
	if err != nil {
		return err
	}

	var doomed []string
	for _, path := range prev.Files {
		if next.Contains(path) || keep[path] {
			continue
		}
		if owner, ok := owners[path]; !ok || owner != name {
			continue
		}
		doomed = append(doomed, path)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(doomed)))

	for _, path := range doomed {
		if err := os.Remove(ins.livePath(path)); err != nil && !os.IsNotExist(err) {
			return zerr.With(zerr.Wrap(err, "failed to remove orphaned file"), "path", path)
		}
	}

	ins.pruneDirs(prev.Footprint.Dirs())
	return nil
}

// apply materializes the staged artifact onto the live filesystem:
// directories first, then files and symlinks, with policy-kept paths
// diverted into the reject store.
func (ins *Installer) apply(fp domain.Footprint, stageDir string, keep map[string]bool) error {
	for _, e := range fp.Entries {
		if e.Type != domain.EntryDir {
			continue
		}
		live := ins.livePath(e.Path)
		if err := os.MkdirAll(live, fs.FileMode(e.Mode)); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", e.Path)
		}
	}

	for _, e := range fp.Entries {
		if e.Type == domain.EntryDir {
			continue
		}
		staged := filepath.Join(stageDir, filepath.FromSlash(e.Path))

		if keep[e.Path] {
			if err := ins.divert(e, staged); err != nil {
				return err
			}
			continue
		}

		if err := ins.place(e, staged); err != nil {
			return err
		}
	}
	return nil
}

// divert routes a packaged file whose on-disk version is preserved into the
// reject store instead of overwriting it.
func (ins *Installer) divert(e domain.FootprintEntry, staged string) error {
	var content io.Reader
	if e.Type == domain.EntrySymlink {
		content = strings.NewReader("symlink -> " + e.Target + "\n")
	} else {
		f, err := os.Open(staged) //nolint:gosec // stage-internal path
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to open staged file"), "path", e.Path)
		}
		defer f.Close() //nolint:errcheck // read-only handle
		content = f
	}

	rejected, err := ins.db.Reject(e.Path, content)
	if err != nil {
		return zerr.With(err, "path", e.Path)
	}
	ins.logger.Warn(fmt.Sprintf("preserved %s, packaged version at %s", e.Path, rejected))
	return nil
}

// place moves one staged entry onto the live filesystem, falling back to a
// copy when the stage and the root live on different filesystems.
func (ins *Installer) place(e domain.FootprintEntry, staged string) error {
	live := ins.livePath(e.Path)
	_ = os.Remove(live)

	if err := os.Rename(staged, live); err == nil {
		return nil
	}

	if e.Type == domain.EntrySymlink {
		if err := os.Symlink(e.Target, live); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create symlink"), "path", e.Path)
		}
		return nil
	}
	if err := copyFile(staged, live, fs.FileMode(e.Mode)); err != nil {
		return zerr.With(err, "path", e.Path)
	}
	return nil
}

func (ins *Installer) livePath(path string) string {
	return filepath.Join(ins.root, filepath.FromSlash(path))
}

// pruneDirs removes directories that became empty, deepest first. Shared
// directories still holding other packages' files survive.
func (ins *Installer) pruneDirs(dirs []string) {
	sorted := make([]string, len(dirs))
	copy(sorted, dirs)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	for _, dir := range sorted {
		// Remove fails on non-empty directories, which is the point.
		_ = os.Remove(ins.livePath(dir))
	}
}

func copyFile(src, dest string, mode fs.FileMode) error {
	in, err := os.Open(src) //nolint:gosec // stage-internal path
	if err != nil {
		return zerr.Wrap(err, "failed to open staged file")
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) //nolint:gosec // footprint-declared path
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.Wrap(err, "failed to copy file")
	}
	return out.Close()
}
