// Package pkgdb implements the on-disk package database: installed records,
// footprint baselines, the reject store and the lock set, plus the advisory
// process lock guarding mutations.
//
// Layout under the database root:
//
//	installed/<name>/version    version-release line
//	installed/<name>/files      one owned path per line
//	installed/<name>/depends    one dependency name per line
//	installed/<name>/explicit   marker, present for user-requested installs
//	installed/<name>/footprint  footprint JSON
//	footprints/<name>.json      build-drift baseline
//	rejects/<path>              preserved-file diversions
//	locks                       one locked name per line
//	lock.pid                    process lock holder
package pkgdb

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Database = (*DB)(nil)

// DB implements ports.Database over a plain directory tree. Every read
// derives state from the files on disk; nothing is cached, so concurrent
// readers always see the last committed write.
type DB struct {
	root string
}

// New creates a DB rooted at the given directory.
func New(root string) *DB {
	return &DB{root: filepath.Clean(root)}
}

func (db *DB) recordDir(name string) string {
	return filepath.Join(db.root, "installed", name)
}

// Record returns the installed record for name, or nil, nil when absent.
func (db *DB) Record(name string) (*domain.InstalledRecord, error) {
	dir := db.recordDir(name)

	version, err := os.ReadFile(filepath.Join(dir, "version"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read record version"), "package", name)
	}

	files, err := readLines(filepath.Join(dir, "files"))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read record files"), "package", name)
	}

	depends, err := readLines(filepath.Join(dir, "depends"))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read record depends"), "package", name)
	}

	explicit := false
	if _, err := os.Stat(filepath.Join(dir, "explicit")); err == nil {
		explicit = true
	}

	var fp domain.Footprint
	data, err := os.ReadFile(filepath.Join(dir, "footprint"))
	if err != nil && !os.IsNotExist(err) {
		return nil, zerr.With(zerr.Wrap(err, "failed to read record footprint"), "package", name)
	}
	if err == nil {
		if err := json.Unmarshal(data, &fp); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to decode record footprint"), "package", name)
		}
	}

	return &domain.InstalledRecord{
		Name:           name,
		VersionRelease: strings.TrimSpace(string(version)),
		Explicit:       explicit,
		Depends:        depends,
		Files:          files,
		Footprint:      fp,
	}, nil
}

// PutRecord creates or replaces the installed record. The version file is
// written last so a crash mid-write never leaves a record that reads as
// installed with partial contents.
func (db *DB) PutRecord(rec domain.InstalledRecord) error {
	dir := db.recordDir(rec.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create record directory")
	}

	if err := writeLines(filepath.Join(dir, "files"), rec.Files); err != nil {
		return zerr.With(err, "package", rec.Name)
	}
	if err := writeLines(filepath.Join(dir, "depends"), rec.Depends); err != nil {
		return zerr.With(err, "package", rec.Name)
	}

	marker := filepath.Join(dir, "explicit")
	if rec.Explicit {
		if err := os.WriteFile(marker, nil, 0o640); err != nil { //nolint:gosec // db metadata
			return zerr.With(zerr.Wrap(err, "failed to write explicit marker"), "package", rec.Name)
		}
	} else if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return zerr.With(zerr.Wrap(err, "failed to clear explicit marker"), "package", rec.Name)
	}

	data, err := json.MarshalIndent(rec.Footprint, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode footprint")
	}
	if err := os.WriteFile(filepath.Join(dir, "footprint"), data, 0o640); err != nil { //nolint:gosec // db metadata
		return zerr.With(zerr.Wrap(err, "failed to write footprint"), "package", rec.Name)
	}

	if err := os.WriteFile(filepath.Join(dir, "version"), []byte(rec.VersionRelease+"\n"), 0o640); err != nil { //nolint:gosec // db metadata
		return zerr.With(zerr.Wrap(err, "failed to write version"), "package", rec.Name)
	}
	return nil
}

// DeleteRecord removes the installed record. Missing records are ignored.
func (db *DB) DeleteRecord(name string) error {
	if err := os.RemoveAll(db.recordDir(name)); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to delete record"), "package", name)
	}
	return nil
}

// Records returns every installed record, sorted by name.
func (db *DB) Records() ([]domain.InstalledRecord, error) {
	entries, err := os.ReadDir(filepath.Join(db.root, "installed"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list installed records")
	}

	var records []domain.InstalledRecord
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := db.Record(e.Name())
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// Owners derives the ownership map from all installed records. Records are
// scanned in name order; on the never-expected double claim the first name
// wins so the map stays at one owner per path.
func (db *DB) Owners() (map[string]string, error) {
	records, err := db.Records()
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string)
	for _, rec := range records {
		for _, path := range rec.Files {
			if _, claimed := owners[path]; !claimed {
				owners[path] = rec.Name
			}
		}
	}
	return owners, nil
}

// Baseline returns the footprint baseline for name, or nil, nil when none
// has been recorded.
func (db *DB) Baseline(name string) (*domain.Footprint, error) {
	data, err := os.ReadFile(filepath.Join(db.root, "footprints", name+".json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read baseline"), "package", name)
	}

	var fp domain.Footprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode baseline"), "package", name)
	}
	return &fp, nil
}

// PutBaseline records the footprint baseline for name.
func (db *DB) PutBaseline(name string, fp domain.Footprint) error {
	dir := filepath.Join(db.root, "footprints")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create baseline directory")
	}
	data, err := json.MarshalIndent(fp, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode baseline")
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0o640); err != nil { //nolint:gosec // db metadata
		return zerr.With(zerr.Wrap(err, "failed to write baseline"), "package", name)
	}
	return nil
}

// Locked returns the lock set.
func (db *DB) Locked() (map[string]bool, error) {
	lines, err := readLines(filepath.Join(db.root, "locks"))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read lock set")
	}
	locked := make(map[string]bool, len(lines))
	for _, name := range lines {
		locked[name] = true
	}
	return locked, nil
}

// Lock adds name to the lock set.
func (db *DB) Lock(name string) error {
	locked, err := db.Locked()
	if err != nil {
		return err
	}
	if locked[name] {
		return nil
	}
	locked[name] = true
	return db.writeLockSet(locked)
}

// Unlock removes name from the lock set.
func (db *DB) Unlock(name string) error {
	locked, err := db.Locked()
	if err != nil {
		return err
	}
	if !locked[name] {
		return nil
	}
	delete(locked, name)
	return db.writeLockSet(locked)
}

func (db *DB) writeLockSet(locked map[string]bool) error {
	if err := os.MkdirAll(db.root, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create database directory")
	}
	names := make([]string, 0, len(locked))
	for name := range locked {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := writeLines(filepath.Join(db.root, "locks"), names); err != nil {
		return zerr.Wrap(err, "failed to write lock set")
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // db-internal path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only handle

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o640); err != nil { //nolint:gosec // db metadata
		return zerr.Wrap(err, "failed to write file")
	}
	return nil
}
