package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"go.trai.ch/zerr"
)

// ChecksumFile returns the hex-encoded sha256 of the file at path.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // cache-internal path
	if err != nil {
		return "", zerr.Wrap(err, "failed to open file")
	}
	defer f.Close() //nolint:errcheck // read-only handle

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", zerr.Wrap(err, "failed to read file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumEqual compares two hex digests case-insensitively.
func ChecksumEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
