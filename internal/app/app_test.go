package app

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
	"go.porto.sh/porto/internal/adapters/inspect"
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
	"go.porto.sh/porto/internal/engine/upgrade"
	"go.porto.sh/porto/internal/engine/verify"
	"go.uber.org/mock/gomock"
)

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
	app    *App
	db     *pkgdb.DB
	tree   *fakeTree
	root   string
	dbRoot string
	stages map[string]map[string]string
	builds []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	state := t.TempDir()
	root := t.TempDir()
	log := logger.New()
	dbRoot := filepath.Join(state, "db")
	db := pkgdb.New(dbRoot)
	store := cas.NewStore(filepath.Join(state, "artifacts"))
	tree := &fakeTree{recipes: make(map[string]*domain.Recipe)}
	h := &harness{db: db, tree: tree, root: root, dbRoot: dbRoot, stages: make(map[string]map[string]string)}

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
	ins := installer.New(root, store, db, policy.NewDefault(), telemetry.NewNoOp(), log)
	res := resolver.New(tree)
	upgrader := upgrade.New(tree, db, res, pipe, ins, classify.NewDefault(), log)
	verifier := verify.New(root, "/usr/local", db, tree, fetcher, inspect.NewLddInspector(), log)
	lock := pkgdb.NewFlockGuard(dbRoot)

	h.app = New(res, pipe, ins, upgrader, verifier, db, lock, log)
	return h
}

func (h *harness) declare(name, version string, files map[string]string, deps ...string) {
	r := &domain.Recipe{
		Name:    domain.Intern(name),
		Version: version,
		Release: "1",
		Steps:   [][]string{{"build-" + name}},
	}
	for _, dep := range deps {
		r.Depends = append(r.Depends, domain.Intern(dep))
	}
	h.tree.recipes[name] = r
	h.stages[name] = files
}

func TestInstallClosureSkipsCurrentDependencies(t *testing.T) {
	h := newHarness(t)
	h.declare("zlib", "1.0", map[string]string{"usr/local/lib/libz.so.1": "z"})
	h.declare("app", "1.0", map[string]string{"usr/local/bin/app": "a"}, "zlib")

	require.NoError(t, h.app.Install(t.Context(), []string{"app"}, Options{}))
	assert.Equal(t, []string{"zlib", "app"}, h.builds)

	for _, name := range []string{"zlib", "app"} {
		rec, err := h.db.Record(name)
		require.NoError(t, err)
		require.NotNil(t, rec, name)
		assert.Equal(t, "1.0-1", rec.VersionRelease)
	}

	data, err := os.ReadFile(filepath.Join(h.root, "usr/local/bin/app"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	// A second install is a cheap no-op: everything is current.
	h.builds = nil
	require.NoError(t, h.app.Install(t.Context(), []string{"app"}, Options{}))
	assert.Empty(t, h.builds)
}

func TestBuildDoesNotTouchLiveFilesystem(t *testing.T) {
	h := newHarness(t)
	h.declare("tool", "1.0", map[string]string{"usr/local/bin/tool": "t"})

	require.NoError(t, h.app.Build(t.Context(), []string{"tool"}, Options{}))

	_, statErr := os.Lstat(filepath.Join(h.root, "usr/local/bin/tool"))
	assert.True(t, os.IsNotExist(statErr))
	rec, err := h.db.Record("tool")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRemoveRequiresTargets(t *testing.T) {
	h := newHarness(t)
	err := h.app.Remove(t.Context(), nil)
	require.ErrorIs(t, err, domain.ErrNoTargetsSpecified)
}

func TestLockRequiresInstalledPackage(t *testing.T) {
	h := newHarness(t)
	err := h.app.Lock(t.Context(), []string{"ghost"})
	require.ErrorIs(t, err, domain.ErrNotInstalled)
}

func TestLockUnlockRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.declare("zlib", "1.0", map[string]string{"usr/local/lib/libz.so.1": "z"})
	require.NoError(t, h.app.Install(t.Context(), []string{"zlib"}, Options{}))

	require.NoError(t, h.app.Lock(t.Context(), []string{"zlib"}))
	locked, err := h.app.Locked(t.Context())
	require.NoError(t, err)
	assert.True(t, locked["zlib"])

	// Locked packages never show up as upgrade candidates.
	h.declare("zlib", "2.0", map[string]string{"usr/local/lib/libz.so.2": "z"})
	outdated, err := h.app.Outdated(t.Context())
	require.NoError(t, err)
	assert.Empty(t, outdated)

	require.NoError(t, h.app.Unlock(t.Context(), []string{"zlib"}))
	outdated, err = h.app.Outdated(t.Context())
	require.NoError(t, err)
	require.Len(t, outdated, 1)
	assert.Equal(t, "zlib", outdated[0].Name.String())
}

func TestMutatingOperationsFailWhenLockHeld(t *testing.T) {
	h := newHarness(t)
	h.declare("tool", "1.0", nil)

	guard := pkgdb.NewFlockGuard(h.dbRoot)
	require.NoError(t, guard.Acquire())
	defer guard.Release() //nolint:errcheck // test cleanup

	err := h.app.Build(t.Context(), []string{"tool"}, Options{})
	require.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestInstallMarksTargetsExplicit(t *testing.T) {
	h := newHarness(t)
	h.declare("zlib", "1.0", map[string]string{"usr/local/lib/libz.so.1": "z"})
	h.declare("app", "1.0", map[string]string{"usr/local/bin/app": "a"}, "zlib")

	require.NoError(t, h.app.Install(t.Context(), []string{"app"}, Options{}))

	app, err := h.db.Record("app")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.True(t, app.Explicit)
	assert.Equal(t, []string{"zlib"}, app.Depends)

	dep, err := h.db.Record("zlib")
	require.NoError(t, err)
	require.NotNil(t, dep)
	assert.False(t, dep.Explicit)
}

func TestAutoremoveDropsUnrequiredDependencies(t *testing.T) {
	h := newHarness(t)
	h.declare("zlib", "1.0", map[string]string{"usr/local/lib/libz.so.1": "z"})
	h.declare("app", "1.0", map[string]string{"usr/local/bin/app": "a"}, "zlib")
	require.NoError(t, h.app.Install(t.Context(), []string{"app"}, Options{}))

	// Nothing to do while app still requires zlib.
	orphans, err := h.app.Autoremove(t.Context(), true)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	require.NoError(t, h.app.Remove(t.Context(), []string{"app"}))

	// Dry run lists the orphan without touching it.
	orphans, err = h.app.Autoremove(t.Context(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"zlib"}, orphans)
	rec, err := h.db.Record("zlib")
	require.NoError(t, err)
	require.NotNil(t, rec)

	removed, err := h.app.Autoremove(t.Context(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"zlib"}, removed)
	rec, err = h.db.Record("zlib")
	require.NoError(t, err)
	assert.Nil(t, rec)
	_, statErr := os.Lstat(filepath.Join(h.root, "usr/local/lib/libz.so.1"))
	assert.True(t, os.IsNotExist(statErr))
}
