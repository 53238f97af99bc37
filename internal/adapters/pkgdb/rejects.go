package pkgdb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// Reject stores artifact content that was not applied because the on-disk
// file was preserved. The reject path mirrors the live path under rejects/;
// re-rejecting the same path appends a numeric suffix instead of
// overwriting the earlier diversion.
func (db *DB) Reject(path string, content io.Reader) (string, error) {
	rel := strings.TrimPrefix(filepath.Clean(path), string(filepath.Separator))
	target := filepath.Join(db.root, "rejects", rel)

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", zerr.Wrap(err, "failed to create reject directory")
	}

	final := target
	for n := 1; ; n++ {
		if _, err := os.Stat(final); os.IsNotExist(err) {
			break
		}
		final = fmt.Sprintf("%s.reject-%d", target, n)
	}

	f, err := os.OpenFile(final, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640) //nolint:gosec // db-internal path
	if err != nil {
		return "", zerr.Wrap(err, "failed to create reject file")
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		return "", zerr.Wrap(err, "failed to write reject file")
	}
	if err := f.Close(); err != nil {
		return "", zerr.Wrap(err, "failed to close reject file")
	}
	return final, nil
}
