package upgrade

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.porto.sh/porto/internal/adapters/cas"
	"go.porto.sh/porto/internal/adapters/classify"
	"go.porto.sh/porto/internal/adapters/fetch"
	"go.porto.sh/porto/internal/adapters/logger"
	"go.porto.sh/porto/internal/adapters/pkgdb"
	"go.porto.sh/porto/internal/adapters/policy"
	"go.porto.sh/porto/internal/adapters/shell"
	"go.porto.sh/porto/internal/adapters/telemetry"
	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.porto.sh/porto/internal/core/ports/mocks"
	"go.porto.sh/porto/internal/engine/installer"
	"go.porto.sh/porto/internal/engine/pipeline"
	"go.porto.sh/porto/internal/engine/resolver"
	"go.uber.org/mock/gomock"
)

// fakeTree is an in-memory recipe provider for orchestration tests.
type fakeTree struct {
	recipes map[string]*domain.Recipe
}

func (f *fakeTree) Lookup(name string) (*domain.Recipe, error) {
	if r, ok := f.recipes[name]; ok {
		return r, nil
	}
	return nil, domain.ErrRecipeNotFound
}

func (f *fakeTree) ListAll() ([]*domain.Recipe, error) {
	out := make([]*domain.Recipe, 0, len(f.recipes))
	for _, r := range f.recipes {
		out = append(out, r)
	}
	return out, nil
}

type harness struct {
	orchestrator *Orchestrator
	db           *pkgdb.DB
	tree         *fakeTree

	// stages maps package name to the files its build step writes,
	// relative to DESTDIR. builds records step invocations in order.
	stages map[string]map[string]string
	builds []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	state := t.TempDir()
	log := logger.New()
	db := pkgdb.New(filepath.Join(state, "db"))
	store := cas.NewStore(filepath.Join(state, "artifacts"))
	tree := &fakeTree{recipes: make(map[string]*domain.Recipe)}

	h := &harness{db: db, tree: tree, stages: make(map[string]map[string]string)}

	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, argv []string, opts ports.ExecOptions) error {
			name := strings.TrimPrefix(argv[0], "build-")
			h.builds = append(h.builds, name)
			for rel, content := range h.stages[name] {
				path := filepath.Join(opts.Env["DESTDIR"], rel)
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			}
			return nil
		}).
		AnyTimes()

	cfg := pipeline.Config{
		BuildRoot: filepath.Join(state, "build"),
		Prefix:    "/usr/local",
		LogDir:    filepath.Join(state, "logs"),
		Jobs:      1,
	}
	fetcher := fetch.NewFetcher(filepath.Join(state, "sources"), 0, shell.NewExecutor(log), log)
	pipe := pipeline.New(cfg, fetcher, store, db, exec, telemetry.NewNoOp(), log)
	ins := installer.New(filepath.Join(state, "root"), store, db, policy.NewDefault(), telemetry.NewNoOp(), log)
	res := resolver.New(tree)

	h.orchestrator = New(tree, db, res, pipe, ins, classify.NewDefault(), log)
	return h
}

// declare adds a recipe to the tree with a build step staging the given
// files.
func (h *harness) declare(name, version, category string, files map[string]string, deps ...string) {
	r := &domain.Recipe{
		Name:     domain.Intern(name),
		Version:  version,
		Release:  "1",
		Category: category,
		Steps:    [][]string{{"build-" + name}},
	}
	for _, dep := range deps {
		r.Depends = append(r.Depends, domain.Intern(dep))
	}
	h.tree.recipes[name] = r
	h.stages[name] = files
}

// installed seeds an installed record directly.
func (h *harness) installed(t *testing.T, name, versionRelease string, paths ...string) {
	t.Helper()
	var fp domain.Footprint
	for _, p := range paths {
		fp.Entries = append(fp.Entries, domain.FootprintEntry{Path: p, Type: domain.EntryFile, Mode: 0o644})
	}
	require.NoError(t, h.db.PutRecord(domain.InstalledRecord{
		Name:           name,
		VersionRelease: versionRelease,
		Files:          paths,
		Footprint:      fp,
	}))
}

func TestOutdatedSkipsCurrentAndLocked(t *testing.T) {
	h := newHarness(t)
	h.declare("gcc", "2.0", "toolchain", nil)
	h.declare("zlib", "2.0", "libs", nil)
	h.declare("vim", "1.0", "editors", nil)
	h.installed(t, "gcc", "1.0-1")
	h.installed(t, "zlib", "1.0-1")
	h.installed(t, "vim", "1.0-1") // already current
	require.NoError(t, h.db.Lock("zlib"))

	outdated, err := h.orchestrator.Outdated()
	require.NoError(t, err)
	require.Len(t, outdated, 1)
	assert.Equal(t, "gcc", outdated[0].Name.String())
}

func TestUpgradeProcessesWavesInOrder(t *testing.T) {
	h := newHarness(t)
	h.declare("app", "2.0", "apps", map[string]string{"usr/local/bin/app": "v2"}, "zlib")
	h.declare("zlib", "2.0", "libs", map[string]string{"usr/local/lib/libz.so.2": "v2"}, "gcc")
	h.declare("gcc", "2.0", "toolchain", map[string]string{"usr/local/bin/gcc": "v2"})
	h.installed(t, "app", "1.0-1", "/usr/local/bin/app")
	h.installed(t, "zlib", "1.0-1", "/usr/local/lib/libz.so.2")
	h.installed(t, "gcc", "1.0-1", "/usr/local/bin/gcc")

	require.NoError(t, h.orchestrator.Upgrade(t.Context(), pipeline.Options{}))

	assert.Equal(t, []string{"gcc", "zlib", "app"}, h.builds)

	for _, name := range []string{"gcc", "zlib", "app"} {
		rec, err := h.db.Record(name)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "2.0-1", rec.VersionRelease)
	}
}

func TestUpgradeRebuildsDependentsOnDroppedSoname(t *testing.T) {
	h := newHarness(t)
	// zlib 2.0 drops libz.so.1 in favor of libz.so.2; app is current but
	// depends on zlib and must be rebuilt in the same run.
	h.declare("zlib", "2.0", "libs", map[string]string{"usr/local/lib/libz.so.2": "v2"})
	h.declare("app", "1.0", "apps", map[string]string{"usr/local/bin/app": "relinked"}, "zlib")
	h.installed(t, "zlib", "1.0-1", "/usr/local/lib/libz.so.1")
	h.installed(t, "app", "1.0-1", "/usr/local/bin/app")

	require.NoError(t, h.orchestrator.Upgrade(t.Context(), pipeline.Options{}))

	assert.Equal(t, []string{"zlib", "app"}, h.builds)

	rec, err := h.db.Record("app")
	require.NoError(t, err)
	assert.Equal(t, "1.0-1", rec.VersionRelease)
}

func TestUpgradeDoesNotRebuildLockedDependents(t *testing.T) {
	h := newHarness(t)
	h.declare("zlib", "2.0", "libs", map[string]string{"usr/local/lib/libz.so.2": "v2"})
	h.declare("app", "1.0", "apps", map[string]string{"usr/local/bin/app": "relinked"}, "zlib")
	h.installed(t, "zlib", "1.0-1", "/usr/local/lib/libz.so.1")
	h.installed(t, "app", "1.0-1", "/usr/local/bin/app")
	require.NoError(t, h.db.Lock("app"))

	require.NoError(t, h.orchestrator.Upgrade(t.Context(), pipeline.Options{}))

	assert.Equal(t, []string{"zlib"}, h.builds)
}

func TestUpgradeDoesNotRebuildUnrelatedPackages(t *testing.T) {
	h := newHarness(t)
	h.declare("zlib", "2.0", "libs", map[string]string{"usr/local/lib/libz.so.2": "v2"})
	h.declare("standalone", "1.0", "apps", map[string]string{"usr/local/bin/standalone": "v1"})
	h.installed(t, "zlib", "1.0-1", "/usr/local/lib/libz.so.1")
	h.installed(t, "standalone", "1.0-1", "/usr/local/bin/standalone")

	require.NoError(t, h.orchestrator.Upgrade(t.Context(), pipeline.Options{}))
	assert.Equal(t, []string{"zlib"}, h.builds)
}

func TestUpgradeNothingToDo(t *testing.T) {
	h := newHarness(t)
	h.declare("vim", "1.0", "editors", nil)
	h.installed(t, "vim", "1.0-1")

	require.NoError(t, h.orchestrator.Upgrade(t.Context(), pipeline.Options{}))
	assert.Empty(t, h.builds)
}
