package ports

import (
	"context"

	"go.porto.sh/porto/internal/core/domain"
)

// SourceFetcher obtains declared sources into a shared content-addressed
// cache and verifies them against declared checksums.
type SourceFetcher interface {
	// Fetch ensures the source is present in the cache and returns its
	// cache path. An already cached source is returned as-is unless
	// refresh is set. Transient failures are retried with bounded attempts.
	Fetch(ctx context.Context, src domain.Source, refresh bool) (string, error)

	// CachePath returns the cache location for the source without fetching.
	CachePath(src domain.Source) string

	// Verify recomputes the cached file's checksum against the declared
	// value. It returns domain.ErrChecksumMismatch on divergence and is a
	// no-op for sources without a declared checksum.
	Verify(src domain.Source) error
}
