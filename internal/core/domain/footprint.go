package domain

import "slices"

// EntryType classifies a footprint entry.
type EntryType string

const (
	// EntryFile is a regular file.
	EntryFile EntryType = "file"
	// EntryDir is a directory.
	EntryDir EntryType = "dir"
	// EntrySymlink is a symbolic link.
	EntrySymlink EntryType = "symlink"
)

// FootprintEntry describes one path a built package provides, relative to the
// installation root and prefixed with "/".
type FootprintEntry struct {
	Path   string    `json:"path"`
	Type   EntryType `json:"type"`
	Mode   uint32    `json:"mode"`
	Owner  string    `json:"owner"`
	Group  string    `json:"group"`
	Target string    `json:"target,omitempty"`
}

// Footprint is the sorted set of paths a built package provides. It is used
// both as the artifact manifest and as the build-drift baseline.
type Footprint struct {
	Entries []FootprintEntry `json:"entries"`
}

// Paths returns the file and symlink paths of the footprint, in entry order.
// Directories are excluded: they are shared with other packages and never
// owned exclusively.
func (f Footprint) Paths() []string {
	paths := make([]string, 0, len(f.Entries))
	for _, e := range f.Entries {
		if e.Type == EntryDir {
			continue
		}
		paths = append(paths, e.Path)
	}
	return paths
}

// Dirs returns the directory paths of the footprint, in entry order.
func (f Footprint) Dirs() []string {
	var dirs []string
	for _, e := range f.Entries {
		if e.Type == EntryDir {
			dirs = append(dirs, e.Path)
		}
	}
	return dirs
}

// Contains reports whether the footprint provides the given path.
func (f Footprint) Contains(path string) bool {
	return slices.ContainsFunc(f.Entries, func(e FootprintEntry) bool {
		return e.Path == path
	})
}

// DiffFootprints compares two footprints by path and returns the paths present
// only in next (added) and only in prev (removed).
func DiffFootprints(prev, next Footprint) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev.Entries))
	for _, e := range prev.Entries {
		prevSet[e.Path] = true
	}
	nextSet := make(map[string]bool, len(next.Entries))
	for _, e := range next.Entries {
		nextSet[e.Path] = true
		if !prevSet[e.Path] {
			added = append(added, e.Path)
		}
	}
	for _, e := range prev.Entries {
		if !nextSet[e.Path] {
			removed = append(removed, e.Path)
		}
	}
	return added, removed
}
