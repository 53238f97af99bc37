// Package ports defines the core interfaces for the application.
package ports

import "go.porto.sh/porto/internal/core/domain"

// RecipeProvider maps package names to their declared metadata. The core only
// consumes this mapping; the ports tree itself is maintained externally.
//
//go:generate go run go.uber.org/mock/mockgen -source=recipes.go -destination=mocks/mock_recipes.go -package=mocks
type RecipeProvider interface {
	// Lookup returns the recipe for the given package name.
	// It returns domain.ErrRecipeNotFound when no recipe exists.
	Lookup(name string) (*domain.Recipe, error)

	// ListAll returns every recipe in the tree, used for batch operations
	// such as upgrade candidate scans and reverse-dependency lookups.
	ListAll() ([]*domain.Recipe, error)
}
