package pipeline

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.porto.sh/porto/internal/adapters/cas" //nolint:depguard // shared safe tar extraction
	"go.trai.ch/zerr"
)

// unpackSource places one cached source into the work directory. Archives
// are extracted, git checkouts are copied as a clean tree, and everything
// else is copied in by basename so recipes can declare auxiliary files
// alongside tarballs.
func unpackSource(cachePath, workDir string) error {
	if info, err := os.Stat(cachePath); err == nil && info.IsDir() {
		// Builds run against a copy so the cached checkout stays clean.
		return copyTree(cachePath, filepath.Join(workDir, filepath.Base(cachePath)))
	}

	switch {
	case hasSuffix(cachePath, ".tar.gz", ".tgz"):
		return extractTar(cachePath, workDir, func(r io.Reader) (io.Reader, func(), error) {
			gz, err := gzip.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return gz, func() { _ = gz.Close() }, nil
		})
	case hasSuffix(cachePath, ".tar.zst"):
		return extractTar(cachePath, workDir, func(r io.Reader) (io.Reader, func(), error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return zr, zr.Close, nil
		})
	case hasSuffix(cachePath, ".tar"):
		return extractTar(cachePath, workDir, func(r io.Reader) (io.Reader, func(), error) {
			return r, func() {}, nil
		})
	default:
		return copyIntoDir(cachePath, workDir)
	}
}

func hasSuffix(path string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

func extractTar(archive, workDir string, wrap func(io.Reader) (io.Reader, func(), error)) error {
	f, err := os.Open(archive) //nolint:gosec // cache-internal path
	if err != nil {
		return zerr.Wrap(err, "failed to open archive")
	}
	defer f.Close() //nolint:errcheck // read-only handle

	r, closeWrap, err := wrap(f)
	if err != nil {
		return zerr.Wrap(err, "failed to open compression stream")
	}
	defer closeWrap()

	if err := cas.Unpack(tar.NewReader(r), workDir); err != nil {
		return zerr.With(err, "archive", filepath.Base(archive))
	}
	return nil
}

func copyIntoDir(src, dir string) error {
	in, err := os.Open(src) //nolint:gosec // cache-internal path
	if err != nil {
		return zerr.Wrap(err, "failed to open source file")
	}
	defer in.Close() //nolint:errcheck // read-only handle

	dest := filepath.Join(dir, filepath.Base(src))
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // build-internal path
	if err != nil {
		return zerr.Wrap(err, "failed to create work file")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.Wrap(err, "failed to copy source file")
	}
	return out.Close()
}

// copyTree copies a source tree into the work area, leaving repository
// bookkeeping behind.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return zerr.Wrap(err, "failed to walk source tree")
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return zerr.Wrap(err, "failed to relativize source path")
		}
		if entry.IsDir() && entry.Name() == ".git" {
			return filepath.SkipDir
		}

		target := filepath.Join(dest, rel)
		info, err := entry.Info()
		if err != nil {
			return zerr.Wrap(err, "failed to stat source entry")
		}
		switch {
		case entry.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return zerr.Wrap(err, "failed to read source symlink")
			}
			return os.Symlink(link, target)
		default:
			return copyFileMode(path, target, info.Mode().Perm())
		}
	})
}

func copyFileMode(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src) //nolint:gosec // cache-internal path
	if err != nil {
		return zerr.Wrap(err, "failed to open source file")
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) //nolint:gosec // build-internal path
	if err != nil {
		return zerr.Wrap(err, "failed to create work file")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.Wrap(err, "failed to copy source file")
	}
	return out.Close()
}

// sourceRoot returns the directory build steps run in. An archive that
// unpacked to a single top-level directory is entered, matching the common
// name-version/ tarball layout; anything else builds in the work directory
// itself.
func sourceRoot(workDir string) (string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", zerr.Wrap(err, "failed to list work directory")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(workDir, entries[0].Name()), nil
	}
	return workDir, nil
}
