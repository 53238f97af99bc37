package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

// pinsFilename records the commit each git reference resolved to, keyed by
// repo@ref. Once pinned, a reference keeps building the same commit until a
// refresh re-resolves it.
const pinsFilename = "pins.json"

// checkoutPath returns the cached checkout directory for a git reference.
func (f *Fetcher) checkoutPath(ref *domain.GitRef) string {
	base := strings.TrimSuffix(path.Base(ref.Repo), ".git")
	key := fmt.Sprintf("%016x", xxhash.Sum64String(ref.Key()))
	return filepath.Join(f.cacheDir, "vcs", key+"-"+base)
}

// fetchGit ensures a checkout of the reference exists in the cache and
// returns its directory. An existing checkout is reused as-is unless refresh
// is set, in which case the reference is re-resolved and re-pinned.
func (f *Fetcher) fetchGit(ctx context.Context, ref *domain.GitRef, refresh bool) (string, error) {
	dir := f.checkoutPath(ref)
	cloned := false

	pinned, err := f.pinnedCommit(ref)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if !refresh {
			return dir, nil
		}
		if err := f.git(ctx, dir, nil, "fetch", "--all", "--tags"); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dir), 0o750); err != nil {
			return "", zerr.Wrap(err, "failed to create vcs cache")
		}
		args := []string{"clone"}
		if pinned == "" && ref.Commit == "" && (ref.Tag != "" || ref.Branch != "") {
			// Shallow clones only work when the ref is advertised; a pin
			// needs the full history to check out.
			args = append(args, "--depth", "1", "--branch", firstOf(ref.Tag, ref.Branch))
		}
		args = append(args, ref.Repo, dir)
		if err := f.git(ctx, "", nil, args...); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
		cloned = true
	}

	switch {
	case pinned != "" && !refresh:
		if err := f.git(ctx, dir, nil, "checkout", "--detach", pinned); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
	case ref.Commit != "":
		if err := f.git(ctx, dir, nil, "checkout", "--detach", ref.Commit); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
	case ref.Tag != "" && !cloned:
		if err := f.git(ctx, dir, nil, "checkout", "--detach", ref.Tag); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
	case ref.Branch != "" && !cloned:
		if err := f.git(ctx, dir, nil, "checkout", "--detach", "origin/"+ref.Branch); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
	case ref.Tag == "" && ref.Branch == "" && !cloned:
		// Tracking the remote HEAD; follow it on refresh.
		if err := f.git(ctx, dir, nil, "checkout", "--detach", "origin/HEAD"); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
	}

	if ref.Submodules {
		if err := f.git(ctx, dir, nil, "submodule", "update", "--init", "--recursive"); err != nil {
			return "", zerr.With(err, "repo", ref.Repo)
		}
	}

	head, err := f.headCommit(ctx, dir)
	if err != nil {
		return "", zerr.With(err, "repo", ref.Repo)
	}
	if err := f.writePin(ref, head); err != nil {
		return "", err
	}
	f.logger.Info(fmt.Sprintf("pinned %s to %s", ref.Key(), head))

	return dir, nil
}

// headCommit returns the commit the checkout currently points at.
func (f *Fetcher) headCommit(ctx context.Context, dir string) (string, error) {
	var out bytes.Buffer
	if err := f.git(ctx, dir, &out, "rev-parse", "HEAD"); err != nil {
		return "", err
	}
	head := strings.TrimSpace(out.String())
	if head == "" {
		return "", zerr.New("could not resolve checkout head")
	}
	return head, nil
}

func (f *Fetcher) git(ctx context.Context, dir string, stdout *bytes.Buffer, args ...string) error {
	opts := ports.ExecOptions{Dir: dir}
	if stdout != nil {
		opts.Stdout = stdout
	}
	return f.exec.Execute(ctx, append([]string{"git"}, args...), opts)
}

// pinnedCommit returns the recorded commit for the reference, empty when the
// reference was never resolved.
func (f *Fetcher) pinnedCommit(ref *domain.GitRef) (string, error) {
	pins, err := f.readPins()
	if err != nil {
		return "", err
	}
	return pins[ref.Key()], nil
}

func (f *Fetcher) writePin(ref *domain.GitRef, commit string) error {
	pins, err := f.readPins()
	if err != nil {
		return err
	}
	if pins[ref.Key()] == commit {
		return nil
	}
	pins[ref.Key()] = commit

	data, err := json.MarshalIndent(pins, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode pins")
	}
	path := filepath.Join(f.cacheDir, "vcs", pinsFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return zerr.Wrap(err, "failed to write pins")
	}
	return nil
}

func (f *Fetcher) readPins() (map[string]string, error) {
	pins := make(map[string]string)
	data, err := os.ReadFile(filepath.Join(f.cacheDir, "vcs", pinsFilename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pins, nil
		}
		return nil, zerr.Wrap(err, "failed to read pins")
	}
	if err := json.Unmarshal(data, &pins); err != nil {
		return nil, zerr.Wrap(err, "failed to decode pins")
	}
	return pins, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
