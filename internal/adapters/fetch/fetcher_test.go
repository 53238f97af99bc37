package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.porto.sh/porto/internal/adapters/logger"
	"go.porto.sh/porto/internal/adapters/shell"
	"go.porto.sh/porto/internal/core/domain"
)

func TestFetchCachesDownload(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("tarball contents"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 0, shell.NewExecutor(logger.New()), logger.New())
	src := domain.Source{URL: srv.URL + "/pkg-1.0.tar.gz"}

	got, err := f.Fetch(t.Context(), src, false)
	require.NoError(t, err)
	assert.Equal(t, f.CachePath(src), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "tarball contents", string(data))

	// Second fetch must not touch the network.
	_, err = f.Fetch(t.Context(), src, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	// Refresh forces a re-download.
	_, err = f.Fetch(t.Context(), src, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 4, shell.NewExecutor(logger.New()), logger.New())
	src := domain.Source{URL: srv.URL + "/flaky.tar.gz"}

	got, err := f.Fetch(t.Context(), src, false)
	require.NoError(t, err)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "eventually", string(data))
	assert.Equal(t, int64(3), hits.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), 5, shell.NewExecutor(logger.New()), logger.New())
	_, err := f.Fetch(t.Context(), domain.Source{URL: srv.URL + "/missing.tar.gz"}, false)
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestFetchCopiesLocalSources(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "local-0.1.tar.gz")
	require.NoError(t, os.WriteFile(local, []byte("local archive"), 0o600))

	f := NewFetcher(t.TempDir(), 0, shell.NewExecutor(logger.New()), logger.New())
	got, err := f.Fetch(t.Context(), domain.Source{URL: local}, false)
	require.NoError(t, err)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "local archive", string(data))
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("verified contents"))
	}))
	defer srv.Close()

	sum := sha256.Sum256([]byte("verified contents"))
	good := hex.EncodeToString(sum[:])

	f := NewFetcher(t.TempDir(), 0, shell.NewExecutor(logger.New()), logger.New())
	src := domain.Source{URL: srv.URL + "/v.tar.gz", SHA256: good}

	_, err := f.Fetch(t.Context(), src, false)
	require.NoError(t, err)
	require.NoError(t, f.Verify(src))

	src.SHA256 = "deadbeef"
	err = f.Verify(src)
	require.ErrorIs(t, err, domain.ErrChecksumMismatch)

	// No declared checksum means nothing to verify.
	src.SHA256 = ""
	require.NoError(t, f.Verify(src))
}

func TestCachePathDistinguishesURLs(t *testing.T) {
	f := NewFetcher(t.TempDir(), 0, shell.NewExecutor(logger.New()), logger.New())
	a := f.CachePath(domain.Source{URL: "https://a.example/pkg-1.0.tar.gz"})
	b := f.CachePath(domain.Source{URL: "https://b.example/pkg-1.0.tar.gz"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "pkg-1.0.tar.gz", filepath.Base(a)[17:])
}
