package installer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.porto.sh/porto/internal/adapters/cas"
	"go.porto.sh/porto/internal/adapters/logger"
	"go.porto.sh/porto/internal/adapters/pkgdb"
	"go.porto.sh/porto/internal/adapters/policy"
	"go.porto.sh/porto/internal/adapters/telemetry"
	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.porto.sh/porto/internal/engine/pipeline"
	"go.trai.ch/zerr"
)

type harness struct {
	installer *Installer
	store     *cas.Store
	db        *pkgdb.DB
	root      string
	dbRoot    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	dbRoot := t.TempDir()
	store := cas.NewStore(t.TempDir())
	db := pkgdb.New(dbRoot)
	return &harness{
		installer: New(root, store, db, policy.NewDefault(), telemetry.NewNoOp(), logger.New()),
		store:     store,
		db:        db,
		root:      root,
		dbRoot:    dbRoot,
	}
}

// saveArtifact stages the given path-to-content map, computes its footprint
// and saves it as the identity's artifact. Paths ending in / become
// directories.
func (h *harness) saveArtifact(t *testing.T, id domain.Identity, files map[string]string) domain.Footprint {
	t.Helper()
	stage := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(stage, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
		if strings.HasSuffix(rel, "/") {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	fp, err := pipeline.ComputeFootprint(stage)
	require.NoError(t, err)
	require.NoError(t, h.store.Save(id, stage, fp))
	return fp
}

func (h *harness) livePath(path string) string {
	return filepath.Join(h.root, filepath.FromSlash(path))
}

func (h *harness) readLive(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(h.livePath(path))
	require.NoError(t, err)
	return string(data)
}

func TestFreshInstall(t *testing.T) {
	h := newHarness(t)
	id := domain.Identity{Name: "hello", Version: "1.0", Release: "1"}
	h.saveArtifact(t, id, map[string]string{
		"/usr/local/bin/hello":        "bin",
		"/usr/local/share/doc/README": "docs",
	})

	require.NoError(t, h.installer.Install(t.Context(), id, Options{Event: ports.EventInstall}))

	assert.Equal(t, "bin", h.readLive(t, "/usr/local/bin/hello"))
	assert.Equal(t, "docs", h.readLive(t, "/usr/local/share/doc/README"))

	rec, err := h.db.Record("hello")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "1.0-1", rec.VersionRelease)
	assert.ElementsMatch(t, []string{"/usr/local/bin/hello", "/usr/local/share/doc/README"}, rec.Files)
}

func TestInstallReportsAllConflictsAtOnce(t *testing.T) {
	h := newHarness(t)

	first := domain.Identity{Name: "first", Version: "1.0", Release: "1"}
	h.saveArtifact(t, first, map[string]string{
		"/usr/local/bin/a": "a",
		"/usr/local/bin/b": "b",
	})
	require.NoError(t, h.installer.Install(t.Context(), first, Options{Event: ports.EventInstall}))

	// An unowned stray file adds a third conflict.
	require.NoError(t, os.MkdirAll(h.livePath("/usr/local/lib"), 0o755))
	require.NoError(t, os.WriteFile(h.livePath("/usr/local/lib/stray"), []byte("stray"), 0o644))

	second := domain.Identity{Name: "second", Version: "2.0", Release: "1"}
	h.saveArtifact(t, second, map[string]string{
		"/usr/local/bin/a":     "a2",
		"/usr/local/bin/b":     "b2",
		"/usr/local/lib/stray": "s2",
	})

	err := h.installer.Install(t.Context(), second, Options{Event: ports.EventInstall})
	require.ErrorIs(t, err, domain.ErrOwnershipConflict)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	conflicts, ok := zErr.Metadata()["conflicts"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{
		"/usr/local/bin/a (owned by first)",
		"/usr/local/bin/b (owned by first)",
		"/usr/local/lib/stray (unowned)",
	}, conflicts)

	// Nothing was applied and no record written.
	assert.Equal(t, "a", h.readLive(t, "/usr/local/bin/a"))
	rec, err := h.db.Record("second")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestForceInstallTransfersOwnership(t *testing.T) {
	h := newHarness(t)

	loser := domain.Identity{Name: "loser", Version: "1.0", Release: "1"}
	h.saveArtifact(t, loser, map[string]string{
		"/usr/local/bin/shared": "old",
		"/usr/local/bin/keeper": "keeper",
	})
	require.NoError(t, h.installer.Install(t.Context(), loser, Options{Event: ports.EventInstall}))

	winner := domain.Identity{Name: "winner", Version: "1.0", Release: "1"}
	h.saveArtifact(t, winner, map[string]string{"/usr/local/bin/shared": "new"})
	require.NoError(t, h.installer.Install(t.Context(), winner, Options{Event: ports.EventInstall, Force: true}))

	assert.Equal(t, "new", h.readLive(t, "/usr/local/bin/shared"))

	owners, err := h.db.Owners()
	require.NoError(t, err)
	assert.Equal(t, "winner", owners["/usr/local/bin/shared"])
	assert.Equal(t, "loser", owners["/usr/local/bin/keeper"])

	// The loser's record no longer lists the transferred path, so removing
	// it must not touch the winner's file.
	require.NoError(t, h.installer.Remove(t.Context(), "loser"))
	assert.Equal(t, "new", h.readLive(t, "/usr/local/bin/shared"))
	_, statErr := os.Lstat(h.livePath("/usr/local/bin/keeper"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpgradeRemovesOrphansAndPreservesConfig(t *testing.T) {
	h := newHarness(t)

	v1 := domain.Identity{Name: "app", Version: "1.0", Release: "1"}
	h.saveArtifact(t, v1, map[string]string{
		"/usr/local/bin/app":     "v1",
		"/usr/local/bin/app-old": "legacy",
		"/etc/app.conf":          "default",
	})
	require.NoError(t, h.installer.Install(t.Context(), v1, Options{Event: ports.EventInstall}))

	// Local edit that must survive the upgrade.
	require.NoError(t, os.WriteFile(h.livePath("/etc/app.conf"), []byte("edited"), 0o644))

	v2 := domain.Identity{Name: "app", Version: "2.0", Release: "1"}
	h.saveArtifact(t, v2, map[string]string{
		"/usr/local/bin/app": "v2",
		"/etc/app.conf":      "new default",
	})
	require.NoError(t, h.installer.Install(t.Context(), v2, Options{Event: ports.EventUpgrade}))

	assert.Equal(t, "v2", h.readLive(t, "/usr/local/bin/app"))
	assert.Equal(t, "edited", h.readLive(t, "/etc/app.conf"))

	// The dropped path is gone.
	_, statErr := os.Lstat(h.livePath("/usr/local/bin/app-old"))
	assert.True(t, os.IsNotExist(statErr))

	// The record reflects v2 and still owns the preserved path.
	rec, err := h.db.Record("app")
	require.NoError(t, err)
	assert.Equal(t, "2.0-1", rec.VersionRelease)
	assert.True(t, rec.Owns("/etc/app.conf"))

	// The packaged version was diverted into the reject store.
	rejects, err := filepath.Glob(filepath.Join(h.dbRoot, "rejects", "etc", "app.conf*"))
	require.NoError(t, err)
	require.Len(t, rejects, 1)
	data, err := os.ReadFile(rejects[0])
	require.NoError(t, err)
	assert.Equal(t, "new default", string(data))
}

func TestFreshInstallDoesNotPreserve(t *testing.T) {
	h := newHarness(t)
	id := domain.Identity{Name: "app", Version: "1.0", Release: "1"}
	h.saveArtifact(t, id, map[string]string{"/etc/app.conf": "packaged"})

	// A leftover unowned file under /etc is a conflict on fresh install,
	// not a preserve case. Force overwrites it.
	require.NoError(t, os.MkdirAll(h.livePath("/etc"), 0o755))
	require.NoError(t, os.WriteFile(h.livePath("/etc/app.conf"), []byte("leftover"), 0o644))

	err := h.installer.Install(t.Context(), id, Options{Event: ports.EventInstall})
	require.ErrorIs(t, err, domain.ErrOwnershipConflict)

	require.NoError(t, h.installer.Install(t.Context(), id, Options{Event: ports.EventInstall, Force: true}))
	assert.Equal(t, "packaged", h.readLive(t, "/etc/app.conf"))
}

func TestRemove(t *testing.T) {
	h := newHarness(t)

	err := h.installer.Remove(t.Context(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotInstalled)

	id := domain.Identity{Name: "app", Version: "1.0", Release: "1"}
	h.saveArtifact(t, id, map[string]string{
		"/usr/local/bin/app":       "bin",
		"/usr/local/share/app/data": "data",
	})
	require.NoError(t, h.installer.Install(t.Context(), id, Options{Event: ports.EventInstall}))

	// Another package shares /usr/local/bin.
	other := domain.Identity{Name: "other", Version: "1.0", Release: "1"}
	h.saveArtifact(t, other, map[string]string{"/usr/local/bin/other": "bin"})
	require.NoError(t, h.installer.Install(t.Context(), other, Options{Event: ports.EventInstall}))

	require.NoError(t, h.installer.Remove(t.Context(), "app"))

	_, statErr := os.Lstat(h.livePath("/usr/local/bin/app"))
	assert.True(t, os.IsNotExist(statErr))

	// The exclusively-owned subtree was pruned, the shared directory kept.
	_, statErr = os.Lstat(h.livePath("/usr/local/share/app"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Lstat(h.livePath("/usr/local/bin"))
	assert.NoError(t, statErr)

	rec, err := h.db.Record("app")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestInstallIsIdempotentForSameVersion(t *testing.T) {
	h := newHarness(t)
	id := domain.Identity{Name: "app", Version: "1.0", Release: "1"}
	h.saveArtifact(t, id, map[string]string{"/usr/local/bin/app": "bin"})

	require.NoError(t, h.installer.Install(t.Context(), id, Options{Event: ports.EventInstall}))
	// Reinstalling the same identity conflicts with nothing: the package
	// already owns every path it provides.
	require.NoError(t, h.installer.Install(t.Context(), id, Options{Event: ports.EventUpgrade}))
	assert.Equal(t, "bin", h.readLive(t, "/usr/local/bin/app"))
}
