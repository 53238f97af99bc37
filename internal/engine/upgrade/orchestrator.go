// Package upgrade orchestrates whole-system upgrades in ordered waves, with
// shared-library-driven rebuilds of dependent packages.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.porto.sh/porto/internal/engine/installer"
	"go.porto.sh/porto/internal/engine/pipeline"
	"go.porto.sh/porto/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// Orchestrator upgrades every outdated installed package. Packages are
// partitioned into waves by the classifier and each wave is processed in
// dependency order, so the toolchain is current before anything builds
// against it.
type Orchestrator struct {
	recipes    ports.RecipeProvider
	db         ports.Database
	resolver   *resolver.Resolver
	pipeline   *pipeline.Pipeline
	installer  *installer.Installer
	classifier ports.WaveClassifier
	logger     ports.Logger
}

// New creates an Orchestrator.
func New(
	recipes ports.RecipeProvider,
	db ports.Database,
	res *resolver.Resolver,
	pipe *pipeline.Pipeline,
	ins *installer.Installer,
	classifier ports.WaveClassifier,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		recipes:    recipes,
		db:         db,
		resolver:   res,
		pipeline:   pipe,
		installer:  ins,
		classifier: classifier,
		logger:     logger,
	}
}

// Outdated returns the recipes of installed packages whose declared
// version-release differs from the installed one, excluding locked packages.
// Installed packages without a recipe are skipped: the tree no longer
// describes them, so there is nothing to upgrade to.
func (o *Orchestrator) Outdated() ([]*domain.Recipe, error) {
	records, err := o.db.Records()
	if err != nil {
		return nil, err
	}
	locked, err := o.db.Locked()
	if err != nil {
		return nil, err
	}

	var outdated []*domain.Recipe
	for _, rec := range records {
		if locked[rec.Name] {
			continue
		}
		recipe, err := o.recipes.Lookup(rec.Name)
		if err != nil {
			if errors.Is(err, domain.ErrRecipeNotFound) {
				continue
			}
			return nil, err
		}
		if recipe.VersionRelease() != rec.VersionRelease {
			outdated = append(outdated, recipe)
		}
	}
	return outdated, nil
}

// Upgrade builds and installs every outdated package, wave by wave. When an
// upgrade drops shared library files, the installed packages declaring a
// dependency on it are rebuilt within the same wave.
func (o *Orchestrator) Upgrade(ctx context.Context, opts pipeline.Options) error {
	candidates, err := o.Outdated()
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		o.logger.Info("everything up to date")
		return nil
	}

	waves := make([][]*domain.Recipe, o.classifier.Waves())
	for _, recipe := range candidates {
		w := o.classifier.Classify(recipe.Name.String(), recipe.Category)
		waves[w] = append(waves[w], recipe)
	}

	for i, wave := range waves {
		if len(wave) == 0 {
			continue
		}
		o.logger.Info(fmt.Sprintf("upgrade wave %d: %d package(s)", i, len(wave)))
		if err := o.processWave(ctx, wave, opts); err != nil {
			return err
		}
	}
	return nil
}

// processWave upgrades one wave in dependency order. Rebuild work discovered
// along the way re-enters the same wave, each package rebuilding at most
// once.
func (o *Orchestrator) processWave(ctx context.Context, wave []*domain.Recipe, opts pipeline.Options) error {
	pending := make(map[string]*domain.Recipe, len(wave))
	force := make(map[string]bool)
	rebuilt := make(map[string]bool)
	for _, recipe := range wave {
		pending[recipe.Name.String()] = recipe
	}

	for len(pending) > 0 {
		names := make([]string, 0, len(pending))
		for name := range pending {
			names = append(names, name)
		}
		order, err := o.resolver.Resolve(names)
		if err != nil {
			return err
		}

		for _, recipe := range order {
			name := recipe.Name.String()
			if _, ok := pending[name]; !ok {
				continue
			}
			delete(pending, name)

			stepOpts := opts
			if force[name] {
				stepOpts.Force = true
			}
			dropped, err := o.upgradeOne(ctx, recipe, stepOpts)
			if err != nil {
				return err
			}

			if len(dropped) == 0 {
				continue
			}
			dependents, err := o.installedDependents(name)
			if err != nil {
				return err
			}
			for _, dep := range dependents {
				depName := dep.Name.String()
				if rebuilt[depName] {
					continue
				}
				rebuilt[depName] = true
				force[depName] = true
				pending[depName] = dep
				o.logger.Info(fmt.Sprintf("rebuilding %s: %s dropped %s", depName, name, strings.Join(dropped, ", ")))
			}
		}
	}
	return nil
}

// upgradeOne builds and installs one package and returns the shared library
// paths its previous registration provided but the new footprint does not.
func (o *Orchestrator) upgradeOne(ctx context.Context, recipe *domain.Recipe, opts pipeline.Options) ([]string, error) {
	name := recipe.Name.String()
	prev, err := o.db.Record(name)
	if err != nil {
		return nil, err
	}

	id, err := o.pipeline.Build(ctx, recipe, opts)
	if err != nil {
		return nil, zerr.With(err, "package", name)
	}
	if err := o.installer.Install(ctx, id, installer.Options{
		Event:   ports.EventUpgrade,
		Depends: recipe.DependNames(),
	}); err != nil {
		return nil, zerr.With(err, "package", name)
	}

	if prev == nil {
		return nil, nil
	}
	next, err := o.db.Record(name)
	if err != nil || next == nil {
		return nil, err
	}

	_, removed := domain.DiffFootprints(prev.Footprint, next.Footprint)
	var dropped []string
	for _, path := range removed {
		if isSharedLib(path) {
			dropped = append(dropped, path)
		}
	}
	return dropped, nil
}

// installedDependents returns the recipes of installed, unlocked packages
// declaring a dependency on name. Locked packages stay out of automatic
// rebuilds just as they stay out of the candidate scan.
func (o *Orchestrator) installedDependents(name string) ([]*domain.Recipe, error) {
	all, err := o.recipes.ListAll()
	if err != nil {
		return nil, err
	}
	locked, err := o.db.Locked()
	if err != nil {
		return nil, err
	}

	var dependents []*domain.Recipe
	for _, recipe := range all {
		for _, dep := range recipe.Depends {
			if dep.String() != name {
				continue
			}
			depName := recipe.Name.String()
			if locked[depName] {
				o.logger.Warn(fmt.Sprintf("%s needs a rebuild against %s but is locked, skipping", depName, name))
				break
			}
			rec, err := o.db.Record(depName)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				dependents = append(dependents, recipe)
			}
			break
		}
	}
	return dependents, nil
}

// isSharedLib reports whether a path looks like a versioned shared object,
// e.g. libfoo.so.1 or libfoo.so.1.2.3.
func isSharedLib(path string) bool {
	return strings.Contains(path, ".so.") || strings.HasSuffix(path, ".so")
}
