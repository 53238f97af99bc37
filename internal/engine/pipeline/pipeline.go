// Package pipeline turns recipes into cached artifacts: fetch, verify,
// extract, build under DESTDIR, footprint and package.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Config holds the filesystem contract handed to recipe builds.
type Config struct {
	// BuildRoot holds per-identity private build areas.
	BuildRoot string

	// Prefix is exported to builds as PREFIX.
	Prefix string

	// LogDir receives one full build log per identity.
	LogDir string

	// Jobs is exported to builds as JOBS and via MAKEFLAGS.
	Jobs int
}

// Options selects per-invocation pipeline behavior.
type Options struct {
	// Refresh re-downloads sources even when cached.
	Refresh bool

	// Force rebuilds even when the artifact is already cached.
	Force bool

	// IgnoreFootprint records a diverging footprint as the new baseline
	// instead of failing the build.
	IgnoreFootprint bool
}

// Pipeline builds recipes into artifacts. Every stage must succeed before
// the next runs; a failed build leaves no artifact behind.
type Pipeline struct {
	cfg       Config
	fetcher   ports.SourceFetcher
	store     ports.ArtifactStore
	db        ports.Database
	exec      ports.Executor
	telemetry ports.Telemetry
	logger    ports.Logger
}

// New creates a Pipeline.
func New(
	cfg Config,
	fetcher ports.SourceFetcher,
	store ports.ArtifactStore,
	db ports.Database,
	exec ports.Executor,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		store:     store,
		db:        db,
		exec:      exec,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Build produces the recipe's artifact, reusing the binary cache when the
// identity is already built. It returns the identity of the usable artifact.
func (p *Pipeline) Build(ctx context.Context, recipe *domain.Recipe, opts Options) (domain.Identity, error) {
	id := recipe.Identity()

	if !opts.Force && p.store.Has(id) {
		_, v := p.telemetry.Record(ctx, "build "+id.String())
		v.Cached()
		v.Complete(nil)
		return id, nil
	}

	paths, err := p.fetchSources(ctx, recipe, opts.Refresh)
	if err != nil {
		return domain.Identity{}, err
	}

	if err := p.verifySources(ctx, recipe); err != nil {
		return domain.Identity{}, err
	}

	workDir, destDir, err := p.prepareBuildArea(id)
	if err != nil {
		return domain.Identity{}, err
	}
	defer os.RemoveAll(filepath.Dir(workDir)) //nolint:errcheck // best effort cleanup

	srcRoot, err := p.extractSources(ctx, id, paths, workDir)
	if err != nil {
		return domain.Identity{}, err
	}

	if err := p.runBuild(ctx, recipe, srcRoot, destDir); err != nil {
		return domain.Identity{}, err
	}

	fp, err := p.packageArtifact(ctx, recipe, id, destDir, opts)
	if err != nil {
		return domain.Identity{}, err
	}

	p.logger.Info(fmt.Sprintf("built %s (%d entries)", id.String(), len(fp.Entries)))
	return id, nil
}

// fetchSources downloads all declared sources concurrently and returns their
// cache paths in declaration order.
func (p *Pipeline) fetchSources(ctx context.Context, recipe *domain.Recipe, refresh bool) ([]string, error) {
	vctx, v := p.telemetry.Record(ctx, "fetch "+recipe.Identity().String())

	paths := make([]string, len(recipe.Sources))
	g, gctx := errgroup.WithContext(vctx)
	for i, src := range recipe.Sources {
		g.Go(func() error {
			path, err := p.fetcher.Fetch(gctx, src, refresh)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}

	err := g.Wait()
	v.Complete(err)
	if err != nil {
		return nil, zerr.With(err, "package", recipe.Name.String())
	}
	return paths, nil
}

// verifySources checks every cached source against its declared checksum.
// All sources must verify before anything is unpacked.
func (p *Pipeline) verifySources(ctx context.Context, recipe *domain.Recipe) error {
	_, v := p.telemetry.Record(ctx, "verify "+recipe.Identity().String())
	for _, src := range recipe.Sources {
		if err := p.fetcher.Verify(src); err != nil {
			v.Complete(err)
			return zerr.With(err, "package", recipe.Name.String())
		}
	}
	v.Complete(nil)
	return nil
}

// prepareBuildArea creates a fresh private build area for the identity and
// returns its work and staging directories.
func (p *Pipeline) prepareBuildArea(id domain.Identity) (workDir, destDir string, err error) {
	base := filepath.Join(p.cfg.BuildRoot, id.String())
	if err := os.RemoveAll(base); err != nil {
		return "", "", zerr.Wrap(err, "failed to clear build area")
	}
	workDir = filepath.Join(base, "work")
	destDir = filepath.Join(base, "dest")
	for _, dir := range []string{workDir, destDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", "", zerr.Wrap(err, "failed to create build area")
		}
	}
	return workDir, destDir, nil
}

// extractSources unpacks all cached sources into the work directory and
// returns the directory build steps run in.
func (p *Pipeline) extractSources(ctx context.Context, id domain.Identity, paths []string, workDir string) (string, error) {
	_, v := p.telemetry.Record(ctx, "extract "+id.String())
	for _, path := range paths {
		if err := unpackSource(path, workDir); err != nil {
			v.Complete(err)
			return "", zerr.With(err, "identity", id.String())
		}
	}

	srcRoot, err := sourceRoot(workDir)
	v.Complete(err)
	if err != nil {
		return "", err
	}
	return srcRoot, nil
}

// runBuild applies recipe patches and then executes the build steps with the
// DESTDIR contract. Full output goes to the per-identity build log and the
// progress vertex.
func (p *Pipeline) runBuild(ctx context.Context, recipe *domain.Recipe, srcRoot, destDir string) error {
	id := recipe.Identity()
	vctx, v := p.telemetry.Record(ctx, "build "+id.String())

	logFile, err := p.openBuildLog(id)
	if err != nil {
		v.Complete(err)
		return err
	}
	defer logFile.Close() //nolint:errcheck // flushed by successful Close below

	stdout := io.MultiWriter(v.Stdout(), logFile)
	stderr := io.MultiWriter(v.Stderr(), logFile)
	env := p.buildEnvironment(recipe, destDir)

	patches, err := listPatches(recipe.Dir)
	if err != nil {
		v.Complete(err)
		return err
	}
	for _, patch := range patches {
		err := p.exec.Execute(vctx, []string{"patch", "-p1", "-i", patch}, ports.ExecOptions{
			Dir:    srcRoot,
			Env:    env,
			Stdout: stdout,
			Stderr: stderr,
		})
		if err != nil {
			v.Complete(err)
			failed := zerr.With(zerr.Wrap(domain.ErrBuildFailed, "patch did not apply"), "package", recipe.Name.String())
			failed = zerr.With(failed, "patch", filepath.Base(patch))
			return zerr.With(failed, "cause", err.Error())
		}
	}

	for i, step := range recipe.Steps {
		err := p.exec.Execute(vctx, step, ports.ExecOptions{
			Dir:    srcRoot,
			Env:    env,
			Stdout: stdout,
			Stderr: stderr,
		})
		if err != nil {
			v.Complete(err)
			failed := zerr.With(zerr.Wrap(domain.ErrBuildFailed, "build step exited non-zero"), "package", recipe.Name.String())
			failed = zerr.With(failed, "step", strings.Join(step, " "))
			failed = zerr.With(failed, "step_index", i)
			return zerr.With(failed, "cause", err.Error())
		}
	}

	v.Complete(nil)
	return nil
}

// packageArtifact computes the staging footprint, enforces the baseline and
// saves the artifact into the binary cache.
func (p *Pipeline) packageArtifact(ctx context.Context, recipe *domain.Recipe, id domain.Identity, destDir string, opts Options) (domain.Footprint, error) {
	_, v := p.telemetry.Record(ctx, "package "+id.String())

	fp, err := ComputeFootprint(destDir)
	if err != nil {
		v.Complete(err)
		return domain.Footprint{}, err
	}

	name := recipe.Name.String()
	if !opts.IgnoreFootprint {
		baseline, err := p.db.Baseline(name)
		if err != nil {
			v.Complete(err)
			return domain.Footprint{}, err
		}
		if baseline != nil {
			if added, removed := domain.DiffFootprints(*baseline, fp); len(added) > 0 || len(removed) > 0 {
				err := zerr.With(zerr.Wrap(domain.ErrFootprintMismatch, "staging tree diverged from baseline"), "package", name)
				err = zerr.With(err, "added", added)
				err = zerr.With(err, "removed", removed)
				v.Complete(err)
				return domain.Footprint{}, err
			}
		}
	}

	if err := p.db.PutBaseline(name, fp); err != nil {
		v.Complete(err)
		return domain.Footprint{}, err
	}

	if err := p.store.Save(id, destDir, fp); err != nil {
		v.Complete(err)
		return domain.Footprint{}, err
	}

	v.Complete(nil)
	return fp, nil
}

// buildEnvironment assembles the variables exported to build steps. Recipe
// overrides win over the contract variables.
func (p *Pipeline) buildEnvironment(recipe *domain.Recipe, destDir string) map[string]string {
	env := map[string]string{
		"DESTDIR":   destDir,
		"PREFIX":    p.cfg.Prefix,
		"JOBS":      strconv.Itoa(p.cfg.Jobs),
		"MAKEFLAGS": "-j" + strconv.Itoa(p.cfg.Jobs),
	}
	for k, vv := range recipe.Environment {
		env[k] = vv
	}
	return env
}

func (p *Pipeline) openBuildLog(id domain.Identity) (*os.File, error) {
	if err := os.MkdirAll(p.cfg.LogDir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create log directory")
	}
	f, err := os.OpenFile(filepath.Join(p.cfg.LogDir, id.String()+".log"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640) //nolint:gosec // log-internal path
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create build log")
	}
	return f, nil
}

// listPatches returns the recipe's patch files in name order. Ordering is
// part of the patching contract, so names choose the application sequence.
func listPatches(recipeDir string) ([]string, error) {
	if recipeDir == "" {
		return nil, nil
	}
	patches, err := filepath.Glob(filepath.Join(recipeDir, "patches", "*.patch"))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list patches")
	}
	sort.Strings(patches)
	return patches, nil
}
