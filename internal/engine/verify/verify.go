// Package verify implements the read-only integrity checks: installed file
// presence, broken shared library links and source cache checksums.
package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

// Issue is one finding of a verification pass.
type Issue struct {
	// Package is the owning package name, empty for findings not tied to
	// an installed record.
	Package string

	// Path is the affected live path or source reference.
	Path string

	// Detail describes what is wrong.
	Detail string
}

func (i Issue) String() string {
	if i.Package == "" {
		return fmt.Sprintf("%s: %s", i.Path, i.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", i.Package, i.Path, i.Detail)
}

// Verifier runs integrity checks against the live filesystem, the package
// database and the source cache. All checks are read-only and need no
// process lock.
type Verifier struct {
	root      string
	prefix    string
	db        ports.Database
	recipes   ports.RecipeProvider
	fetcher   ports.SourceFetcher
	inspector ports.LinkInspector
	logger    ports.Logger
}

// New creates a Verifier rooted at root.
func New(
	root, prefix string,
	db ports.Database,
	recipes ports.RecipeProvider,
	fetcher ports.SourceFetcher,
	inspector ports.LinkInspector,
	logger ports.Logger,
) *Verifier {
	return &Verifier{
		root:      filepath.Clean(root),
		prefix:    prefix,
		db:        db,
		recipes:   recipes,
		fetcher:   fetcher,
		inspector: inspector,
		logger:    logger,
	}
}

// Check verifies that every recorded file exists on disk and, best-effort,
// that executables under the prefix resolve all their shared libraries.
func (v *Verifier) Check(ctx context.Context) ([]Issue, error) {
	records, err := v.db.Records()
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for _, rec := range records {
		for _, path := range rec.Files {
			live := v.livePath(path)
			info, err := os.Lstat(live)
			if err != nil {
				issues = append(issues, Issue{Package: rec.Name, Path: path, Detail: "missing"})
				continue
			}
			if info.Mode().IsRegular() && isExecutable(info.Mode()) {
				broken, err := v.inspector.BrokenLibs(ctx, live)
				if err != nil {
					// Inspection is best effort; record and move on.
					v.logger.Warn(fmt.Sprintf("link inspection failed for %s: %v", path, err))
					continue
				}
				for _, lib := range broken {
					issues = append(issues, Issue{Package: rec.Name, Path: path, Detail: "missing library " + lib})
				}
			}
		}
	}
	return issues, nil
}

// VerifyDistfiles recomputes the checksum of every cached source declared by
// the tree. Sources not yet cached are reported, not fetched.
func (v *Verifier) VerifyDistfiles(_ context.Context) ([]Issue, error) {
	recipes, err := v.recipes.ListAll()
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for _, recipe := range recipes {
		name := recipe.Name.String()
		for _, src := range recipe.Sources {
			if _, err := os.Stat(v.fetcher.CachePath(src)); err != nil {
				issues = append(issues, Issue{Package: name, Path: src.URL, Detail: "not cached"})
				continue
			}
			if err := v.fetcher.Verify(src); err != nil {
				detail := "checksum mismatch"
				if !errors.Is(err, domain.ErrChecksumMismatch) {
					detail = err.Error()
				}
				issues = append(issues, Issue{Package: name, Path: src.URL, Detail: detail})
			}
		}
	}
	return issues, nil
}

// VerifyPrefix checks that one installed package's recorded files under the
// configured prefix are present.
func (v *Verifier) VerifyPrefix(_ context.Context, name string) ([]Issue, error) {
	rec, err := v.db.Record(name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrNotInstalled, "cannot verify prefix"), "package", name)
	}

	var issues []Issue
	for _, path := range rec.Files {
		if !strings.HasPrefix(path, v.prefix) {
			continue
		}
		if _, err := os.Lstat(v.livePath(path)); err != nil {
			issues = append(issues, Issue{Package: name, Path: path, Detail: "missing"})
		}
	}
	return issues, nil
}

func (v *Verifier) livePath(path string) string {
	return filepath.Join(v.root, filepath.FromSlash(path))
}

func isExecutable(mode os.FileMode) bool {
	return mode.Perm()&0o111 != 0
}
