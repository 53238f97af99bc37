// Package resolver computes dependency closures in build-before-dependent
// order from the declared recipe graph.
package resolver

import (
	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
)

// Resolver expands target names into an ordered dependency closure using a
// depth-first walk over declared dependencies.
type Resolver struct {
	recipes ports.RecipeProvider
}

// New creates a Resolver over the given recipe provider.
func New(recipes ports.RecipeProvider) *Resolver {
	return &Resolver{recipes: recipes}
}

// Resolve returns the recipes of the targets and all their transitive
// dependencies, ordered so every recipe appears after everything it depends
// on. Recipes shared between targets appear exactly once. Resolution state is
// shared across targets, so a later target already covered by an earlier
// closure contributes nothing new.
func (r *Resolver) Resolve(targets []string) ([]*domain.Recipe, error) {
	if len(targets) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}

	visited := make(map[domain.InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []domain.InternedString
	var order []*domain.Recipe

	var visit func(name domain.InternedString) error
	visit = func(name domain.InternedString) error {
		visited[name] = 1
		path = append(path, name)

		recipe, err := r.recipes.Lookup(name.String())
		if err != nil {
			return zerr.With(zerr.Wrap(err, ""), "package", name.String())
		}

		for _, dep := range recipe.Depends {
			switch visited[dep] {
			case 1:
				return buildCycleError(path, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[name] = 2
		path = path[:len(path)-1]
		order = append(order, recipe)
		return nil
	}

	for _, target := range targets {
		name := domain.Intern(target)
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

// buildCycleError constructs an error with cycle path metadata.
func buildCycleError(path []domain.InternedString, dep domain.InternedString) error {
	cyclePath := ""
	startIdx := 0
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += dep.String()
	return zerr.With(zerr.Wrap(domain.ErrCycleDetected, "cannot order targets"), "cycle", cyclePath)
}
