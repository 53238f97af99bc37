// Package fetch implements the content-addressed source cache and fetcher.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceFetcher = (*Fetcher)(nil)

// Fetcher implements ports.SourceFetcher backed by a shared cache directory.
// Cache entries are keyed by a hash of the source reference, so the same
// source is fetched once across builds. Git checkouts live in a vcs/
// subdirectory next to the archives.
type Fetcher struct {
	cacheDir string
	client   *http.Client
	retries  uint
	exec     ports.Executor
	logger   ports.Logger
}

// NewFetcher creates a Fetcher with the given cache directory and retry
// bound. The executor runs the git binary for checkout sources.
func NewFetcher(cacheDir string, retries uint, exec ports.Executor, logger ports.Logger) *Fetcher {
	return &Fetcher{
		cacheDir: filepath.Clean(cacheDir),
		client:   &http.Client{Timeout: 10 * time.Minute},
		retries:  retries,
		exec:     exec,
		logger:   logger,
	}
}

// CachePath returns the cache location for a source reference: the archive
// file for url sources, the checkout directory for git sources.
func (f *Fetcher) CachePath(src domain.Source) string {
	if src.Git != nil {
		return f.checkoutPath(src.Git)
	}
	base := path.Base(src.URL)
	if u, err := url.Parse(src.URL); err == nil && u.Path != "" {
		base = path.Base(u.Path)
	}
	key := fmt.Sprintf("%016x", xxhash.Sum64String(src.URL))
	return filepath.Join(f.cacheDir, key+"-"+base)
}

// Fetch ensures the source is cached and returns its cache path. Transient
// failures are retried with exponential delay up to the configured bound.
func (f *Fetcher) Fetch(ctx context.Context, src domain.Source, refresh bool) (string, error) {
	if src.Git != nil {
		return f.fetchGit(ctx, src.Git, refresh)
	}

	dest := f.CachePath(src)

	if !refresh {
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
	}

	if err := os.MkdirAll(f.cacheDir, 0o750); err != nil {
		return "", zerr.Wrap(err, "failed to create source cache")
	}

	op := func() error {
		return f.download(ctx, src.URL, dest)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(f.retries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to fetch source"), "url", src.URL)
	}

	return dest, nil
}

// Verify recomputes the cached file's sha256 against the declared checksum.
// Git sources carry no checksum; their integrity is the pinned commit.
func (f *Fetcher) Verify(src domain.Source) error {
	if src.Git != nil || src.SHA256 == "" {
		return nil
	}

	got, err := ChecksumFile(f.CachePath(src))
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to checksum source"), "url", src.URL)
	}
	if !ChecksumEqual(got, src.SHA256) {
		err := zerr.With(zerr.Wrap(domain.ErrChecksumMismatch, "cached source is corrupt"), "url", src.URL)
		err = zerr.With(err, "expected", src.SHA256)
		return zerr.With(err, "actual", got)
	}
	return nil
}

// download writes the source to dest via a temp file so a failed transfer
// never leaves a partial cache entry.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		// Local sources are copied into the cache, not downloaded.
		local := rawURL
		if u != nil && u.Scheme == "file" {
			local = u.Path
		}
		return backoff.Permanent(f.copyLocal(local, dest))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(zerr.Wrap(err, "failed to build request"))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return zerr.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck // best effort close

	if resp.StatusCode != http.StatusOK {
		err := zerr.With(zerr.New("unexpected response status"), "status", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors will not heal on retry.
			return backoff.Permanent(err)
		}
		return err
	}

	return writeAtomic(dest, resp.Body)
}

func (f *Fetcher) copyLocal(src, dest string) error {
	in, err := os.Open(src) //nolint:gosec // recipe-declared source path
	if err != nil {
		return zerr.Wrap(err, "failed to open local source")
	}
	defer in.Close() //nolint:errcheck // best effort close
	return writeAtomic(dest, in)
}

func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // cleanup on the success path is a no-op after rename

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "transfer failed")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return zerr.Wrap(err, "failed to move source into cache")
	}
	return nil
}
