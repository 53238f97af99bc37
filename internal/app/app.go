// Package app implements the application layer for porto: the operations the
// CLI exposes, with process locking around every mutation.
package app

import (
	"context"
	"fmt"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.porto.sh/porto/internal/engine/installer"
	"go.porto.sh/porto/internal/engine/pipeline"
	"go.porto.sh/porto/internal/engine/resolver"
	"go.porto.sh/porto/internal/engine/upgrade"
	"go.porto.sh/porto/internal/engine/verify"
	"go.trai.ch/zerr"
)

// Options selects per-invocation behavior shared by build and install.
type Options struct {
	// Force rebuilds cached artifacts and claims conflicting paths.
	Force bool

	// Refresh re-downloads sources even when cached.
	Refresh bool

	// IgnoreFootprint accepts footprint drift as the new baseline.
	IgnoreFootprint bool
}

func (o Options) pipeline() pipeline.Options {
	return pipeline.Options{
		Refresh:         o.Refresh,
		Force:           o.Force,
		IgnoreFootprint: o.IgnoreFootprint,
	}
}

// App exposes the package manager's operations. Mutating operations take the
// process lock first and release it on every exit.
type App struct {
	resolver  *resolver.Resolver
	pipeline  *pipeline.Pipeline
	installer *installer.Installer
	upgrader  *upgrade.Orchestrator
	verifier  *verify.Verifier
	db        ports.Database
	lock      ports.ProcessLock
	logger    ports.Logger
}

// New creates a new App instance.
func New(
	res *resolver.Resolver,
	pipe *pipeline.Pipeline,
	ins *installer.Installer,
	upgrader *upgrade.Orchestrator,
	verifier *verify.Verifier,
	db ports.Database,
	lock ports.ProcessLock,
	logger ports.Logger,
) *App {
	return &App{
		resolver:  res,
		pipeline:  pipe,
		installer: ins,
		upgrader:  upgrader,
		verifier:  verifier,
		db:        db,
		lock:      lock,
		logger:    logger,
	}
}

// withLock runs fn under the process lock.
func (a *App) withLock(fn func() error) error {
	if err := a.lock.Acquire(); err != nil {
		return err
	}
	defer a.lock.Release() //nolint:errcheck // release error is unactionable here
	return fn()
}

// Build builds the targets and their dependency closures into the binary
// cache without touching the live filesystem. Baseline writes still mutate
// the database, so the lock is held.
func (a *App) Build(ctx context.Context, targets []string, opts Options) error {
	return a.withLock(func() error {
		order, err := a.resolver.Resolve(targets)
		if err != nil {
			return err
		}
		for _, recipe := range order {
			if _, err := a.pipeline.Build(ctx, recipe, opts.pipeline()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Install builds and installs the targets and their dependency closures.
// Dependencies already installed at the declared version are left alone.
func (a *App) Install(ctx context.Context, targets []string, opts Options) error {
	return a.withLock(func() error {
		order, err := a.resolver.Resolve(targets)
		if err != nil {
			return err
		}
		requested := make(map[string]bool, len(targets))
		for _, target := range targets {
			requested[domain.StripQualifier(target)] = true
		}
		for _, recipe := range order {
			name := recipe.Name.String()
			rec, err := a.db.Record(name)
			if err != nil {
				return err
			}
			if rec != nil && rec.VersionRelease == recipe.VersionRelease() && !opts.Force {
				continue
			}

			id, err := a.pipeline.Build(ctx, recipe, opts.pipeline())
			if err != nil {
				return err
			}

			event := ports.EventInstall
			if rec != nil {
				event = ports.EventUpgrade
			}
			if err := a.installer.Install(ctx, id, installer.Options{
				Event:    event,
				Force:    opts.Force,
				Explicit: requested[name],
				Depends:  recipe.DependNames(),
			}); err != nil {
				return err
			}
			a.logger.Info(fmt.Sprintf("installed %s", id.String()))
		}
		return nil
	})
}

// Remove uninstalls the named packages.
func (a *App) Remove(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return domain.ErrNoTargetsSpecified
	}
	return a.withLock(func() error {
		for _, name := range names {
			if err := a.installer.Remove(ctx, name); err != nil {
				return err
			}
			a.logger.Info(fmt.Sprintf("removed %s", name))
		}
		return nil
	})
}

// Autoremove uninstalls installed packages that were pulled in as
// dependencies and are no longer required by any explicit package. With
// dryRun the candidates are returned without removing anything.
func (a *App) Autoremove(ctx context.Context, dryRun bool) ([]string, error) {
	if dryRun {
		return a.installer.Orphans()
	}
	var removed []string
	err := a.withLock(func() error {
		var err error
		removed, err = a.installer.Autoremove(ctx)
		return err
	})
	return removed, err
}

// Upgrade brings every outdated installed package to its declared version.
func (a *App) Upgrade(ctx context.Context, opts Options) error {
	return a.withLock(func() error {
		return a.upgrader.Upgrade(ctx, opts.pipeline())
	})
}

// Outdated lists the packages an upgrade would touch. Read-only.
func (a *App) Outdated(_ context.Context) ([]*domain.Recipe, error) {
	return a.upgrader.Outdated()
}

// Check verifies installed files and dynamic links. Read-only.
func (a *App) Check(ctx context.Context) ([]verify.Issue, error) {
	return a.verifier.Check(ctx)
}

// VerifyDistfiles verifies the source cache against declared checksums.
// Read-only.
func (a *App) VerifyDistfiles(ctx context.Context) ([]verify.Issue, error) {
	return a.verifier.VerifyDistfiles(ctx)
}

// VerifyPrefix verifies one package's files under the prefix. Read-only.
func (a *App) VerifyPrefix(ctx context.Context, name string) ([]verify.Issue, error) {
	return a.verifier.VerifyPrefix(ctx, name)
}

// Lock excludes packages from upgrade consideration.
func (a *App) Lock(_ context.Context, names []string) error {
	if len(names) == 0 {
		return domain.ErrNoTargetsSpecified
	}
	return a.withLock(func() error {
		for _, name := range names {
			rec, err := a.db.Record(name)
			if err != nil {
				return err
			}
			if rec == nil {
				return zerr.With(zerr.Wrap(domain.ErrNotInstalled, "only installed packages can be locked"), "package", name)
			}
			if err := a.db.Lock(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Unlock re-admits packages to upgrade consideration.
func (a *App) Unlock(_ context.Context, names []string) error {
	if len(names) == 0 {
		return domain.ErrNoTargetsSpecified
	}
	return a.withLock(func() error {
		for _, name := range names {
			if err := a.db.Unlock(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Locked returns the current lock set. Read-only.
func (a *App) Locked(_ context.Context) (map[string]bool, error) {
	return a.db.Locked()
}
