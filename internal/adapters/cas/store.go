// Package cas implements the binary cache holding built artifacts as
// zstd-compressed tarballs alongside their footprints.
package cas

import (
	"archive/tar"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ArtifactStore = (*Store)(nil)

// Store implements ports.ArtifactStore on a flat directory. Each artifact is
// a <name-version-release>.tar.zst with a .footprint.json sidecar; both are
// written atomically so the cache never holds a half-saved artifact.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

func (s *Store) archivePath(id domain.Identity) string {
	return filepath.Join(s.dir, id.String()+".tar.zst")
}

func (s *Store) footprintPath(id domain.Identity) string {
	return filepath.Join(s.dir, id.String()+".footprint.json")
}

// Has reports whether the identity's archive and footprint are both cached.
func (s *Store) Has(id domain.Identity) bool {
	if _, err := os.Stat(s.archivePath(id)); err != nil {
		return false
	}
	_, err := os.Stat(s.footprintPath(id))
	return err == nil
}

// Save archives the staging tree and footprint under the identity.
func (s *Store) Save(id domain.Identity, stagingDir string, fp domain.Footprint) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create artifact directory")
	}

	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp archive")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := writeArchive(tmp, stagingDir); err != nil {
		_ = tmp.Close()
		return zerr.With(err, "identity", id.String())
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close archive")
	}

	data, err := json.MarshalIndent(fp, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode footprint")
	}
	if err := os.WriteFile(s.footprintPath(id), data, 0o640); err != nil { //nolint:gosec // cache metadata
		return zerr.Wrap(err, "failed to write footprint")
	}

	if err := os.Rename(tmp.Name(), s.archivePath(id)); err != nil {
		return zerr.Wrap(err, "failed to move archive into cache")
	}
	return nil
}

// Footprint returns the stored footprint for the identity.
func (s *Store) Footprint(id domain.Identity) (domain.Footprint, error) {
	data, err := os.ReadFile(s.footprintPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Footprint{}, zerr.With(zerr.Wrap(domain.ErrArtifactNotFound, "no footprint sidecar"), "identity", id.String())
		}
		return domain.Footprint{}, zerr.Wrap(err, "failed to read footprint")
	}

	var fp domain.Footprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return domain.Footprint{}, zerr.Wrap(err, "failed to decode footprint")
	}
	return fp, nil
}

// Extract unpacks the artifact's file tree into destDir.
func (s *Store) Extract(id domain.Identity, destDir string) error {
	f, err := os.Open(s.archivePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return zerr.With(zerr.Wrap(domain.ErrArtifactNotFound, "no archive in cache"), "identity", id.String())
		}
		return zerr.Wrap(err, "failed to open archive")
	}
	defer f.Close() //nolint:errcheck // read-only handle

	zr, err := zstd.NewReader(f)
	if err != nil {
		return zerr.Wrap(err, "failed to open zstd stream")
	}
	defer zr.Close()

	if err := Unpack(tar.NewReader(zr), destDir); err != nil {
		return zerr.With(err, "identity", id.String())
	}
	return nil
}

// writeArchive tars the staging tree, paths relative to its root, through
// a zstd writer.
func writeArchive(w io.Writer, stagingDir string) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return zerr.Wrap(err, "failed to create zstd writer")
	}
	tw := tar.NewWriter(zw)

	err = filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
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
		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(path) //nolint:gosec // staging-internal path
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck // read-only handle
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return zerr.Wrap(err, "failed to archive staging tree")
	}

	if err := tw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish tar stream")
	}
	if err := zw.Close(); err != nil {
		return zerr.Wrap(err, "failed to finish zstd stream")
	}
	return nil
}

// Unpack extracts a tar stream into destDir, rejecting entries that would
// escape it. Symlink targets are taken as-is; only entry names are checked.
func Unpack(tr *tar.Reader, destDir string) error {
	destDir = filepath.Clean(destDir)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "failed to read tar entry")
		}

		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return zerr.With(zerr.New("archive entry escapes destination"), "entry", hdr.Name)
		}
		target := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, fs.FileMode(hdr.Mode)&fs.ModePerm); err != nil { //nolint:gosec // masked to perm bits
				return zerr.Wrap(err, "failed to create directory")
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return zerr.Wrap(err, "failed to create parent directory")
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return zerr.Wrap(err, "failed to create symlink")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return zerr.Wrap(err, "failed to create parent directory")
			}
			if err := writeEntry(target, tr, fs.FileMode(hdr.Mode)&fs.ModePerm); err != nil { //nolint:gosec // masked to perm bits
				return err
			}
		default:
			// Hard links and devices never appear in staged builds.
			return zerr.With(zerr.New("unsupported archive entry type"), "entry", hdr.Name)
		}
	}
}

func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) //nolint:gosec // path checked local above
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	if _, err := io.Copy(f, r); err != nil { //nolint:gosec // bounded by archive size
		_ = f.Close()
		return zerr.Wrap(err, "failed to write file")
	}
	if err := f.Close(); err != nil {
		return zerr.Wrap(err, "failed to close file")
	}
	return nil
}
