package pipeline

import (
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"go.porto.sh/porto/internal/core/domain"
	"go.trai.ch/zerr"
)

// ComputeFootprint walks a staging tree and returns its footprint: every
// directory, file and symlink with mode and ownership, paths rooted at "/".
// WalkDir visits lexically, so entries come out sorted with parents before
// children.
func ComputeFootprint(stagingDir string) (domain.Footprint, error) {
	var fp domain.Footprint

	err := filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		entry := domain.FootprintEntry{
			Path: "/" + filepath.ToSlash(rel),
			Mode: uint32(info.Mode().Perm()),
		}
		entry.Owner, entry.Group = ownership(info)

		switch {
		case d.IsDir():
			entry.Type = domain.EntryDir
		case info.Mode()&fs.ModeSymlink != 0:
			entry.Type = domain.EntrySymlink
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			entry.Target = target
		default:
			entry.Type = domain.EntryFile
		}

		fp.Entries = append(fp.Entries, entry)
		return nil
	})
	if err != nil {
		return domain.Footprint{}, zerr.Wrap(err, "failed to walk staging tree")
	}

	return fp, nil
}

// ownership resolves uid/gid to names, falling back to the numeric form for
// ids without passwd entries.
func ownership(info fs.FileInfo) (owner, group string) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}

	owner = strconv.FormatUint(uint64(st.Uid), 10)
	if u, err := user.LookupId(owner); err == nil {
		owner = u.Username
	}
	group = strconv.FormatUint(uint64(st.Gid), 10)
	if g, err := user.LookupGroupId(group); err == nil {
		group = g.Name
	}
	return owner, group
}
