package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.porto.sh/porto/internal/adapters/fetch"
	"go.porto.sh/porto/internal/adapters/logger"
	"go.porto.sh/porto/internal/adapters/pkgdb"
	"go.porto.sh/porto/internal/adapters/shell"
	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type stubInspector struct {
	broken map[string][]string
}

func (s *stubInspector) BrokenLibs(_ context.Context, binPath string) ([]string, error) {
	return s.broken[filepath.Base(binPath)], nil
}

type harness struct {
	verifier  *Verifier
	db        *pkgdb.DB
	fetcher   *fetch.Fetcher
	inspector *stubInspector
	root      string
	srcCache  string
	provider  *mocks.MockRecipeProvider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	srcCache := t.TempDir()
	log := logger.New()
	db := pkgdb.New(t.TempDir())
	fetcher := fetch.NewFetcher(srcCache, 0, shell.NewExecutor(log), log)
	inspector := &stubInspector{broken: make(map[string][]string)}
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockRecipeProvider(ctrl)

	return &harness{
		verifier:  New(root, "/usr/local", db, provider, fetcher, inspector, log),
		db:        db,
		fetcher:   fetcher,
		inspector: inspector,
		root:      root,
		srcCache:  srcCache,
		provider:  provider,
	}
}

func (h *harness) installFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	live := filepath.Join(h.root, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(live), 0o755))
	require.NoError(t, os.WriteFile(live, []byte("x"), mode))
}

func TestCheckReportsMissingFiles(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.PutRecord(domain.InstalledRecord{
		Name:           "app",
		VersionRelease: "1.0-1",
		Files:          []string{"/usr/local/bin/app", "/usr/local/share/app/data"},
	}))
	h.installFile(t, "/usr/local/bin/app", 0o755)

	issues, err := h.verifier.Check(t.Context())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "app", issues[0].Package)
	assert.Equal(t, "/usr/local/share/app/data", issues[0].Path)
	assert.Equal(t, "missing", issues[0].Detail)
}

func TestCheckReportsBrokenLinks(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.PutRecord(domain.InstalledRecord{
		Name:           "app",
		VersionRelease: "1.0-1",
		Files:          []string{"/usr/local/bin/app"},
	}))
	h.installFile(t, "/usr/local/bin/app", 0o755)
	h.inspector.broken["app"] = []string{"libz.so.1"}

	issues, err := h.verifier.Check(t.Context())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "missing library libz.so.1", issues[0].Detail)
}

func TestCheckSkipsInspectionForNonExecutables(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.PutRecord(domain.InstalledRecord{
		Name:           "app",
		VersionRelease: "1.0-1",
		Files:          []string{"/usr/local/share/app/data"},
	}))
	h.installFile(t, "/usr/local/share/app/data", 0o644)
	h.inspector.broken["data"] = []string{"libz.so.1"} // must not be consulted

	issues, err := h.verifier.Check(t.Context())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestVerifyDistfiles(t *testing.T) {
	h := newHarness(t)

	good := domain.Source{URL: "https://example.org/good-1.0.tar.gz"}
	sum := sha256.Sum256([]byte("good contents"))
	good.SHA256 = hex.EncodeToString(sum[:])
	require.NoError(t, os.WriteFile(h.fetcher.CachePath(good), []byte("good contents"), 0o600))

	corrupt := domain.Source{URL: "https://example.org/corrupt-1.0.tar.gz", SHA256: good.SHA256}
	require.NoError(t, os.WriteFile(h.fetcher.CachePath(corrupt), []byte("tampered"), 0o600))

	missing := domain.Source{URL: "https://example.org/missing-1.0.tar.gz", SHA256: good.SHA256}

	h.provider.EXPECT().ListAll().Return([]*domain.Recipe{
		{Name: domain.Intern("good"), Version: "1.0", Release: "1", Sources: []domain.Source{good}},
		{Name: domain.Intern("corrupt"), Version: "1.0", Release: "1", Sources: []domain.Source{corrupt}},
		{Name: domain.Intern("missing"), Version: "1.0", Release: "1", Sources: []domain.Source{missing}},
	}, nil)

	issues, err := h.verifier.VerifyDistfiles(t.Context())
	require.NoError(t, err)
	require.Len(t, issues, 2)

	byPkg := make(map[string]Issue, len(issues))
	for _, i := range issues {
		byPkg[i.Package] = i
	}
	assert.Equal(t, "checksum mismatch", byPkg["corrupt"].Detail)
	assert.Equal(t, "not cached", byPkg["missing"].Detail)
}

func TestVerifyPrefix(t *testing.T) {
	h := newHarness(t)

	_, err := h.verifier.VerifyPrefix(t.Context(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotInstalled)

	require.NoError(t, h.db.PutRecord(domain.InstalledRecord{
		Name:           "app",
		VersionRelease: "1.0-1",
		Files:          []string{"/usr/local/bin/app", "/usr/local/bin/gone", "/etc/app.conf"},
	}))
	h.installFile(t, "/usr/local/bin/app", 0o755)
	// /etc/app.conf is outside the prefix and ignored even though missing.

	issues, err := h.verifier.VerifyPrefix(t.Context(), "app")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "/usr/local/bin/gone", issues[0].Path)
}
