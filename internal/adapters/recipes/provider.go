// Package recipes provides the filesystem recipe provider for the ports tree.
package recipes

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.porto.sh/porto/internal/core/domain"
	"go.porto.sh/porto/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// RecipeFilename is the per-package recipe file inside the ports tree.
const RecipeFilename = "package.yml"

var _ ports.RecipeProvider = (*Provider)(nil)

// Provider implements ports.RecipeProvider over a ports tree laid out as
// <tree>/<name>/package.yml.
type Provider struct {
	tree string
}

// NewProvider creates a Provider rooted at the given ports tree.
func NewProvider(tree string) *Provider {
	return &Provider{tree: filepath.Clean(tree)}
}

// recipeDTO mirrors the package.yml structure.
type recipeDTO struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Release     string            `yaml:"release"`
	Category    string            `yaml:"category"`
	Depends     []string          `yaml:"depends"`
	Sources     []sourceDTO       `yaml:"sources"`
	Build       [][]string        `yaml:"build"`
	Environment map[string]string `yaml:"environment"`
}

type sourceDTO struct {
	URL    string `yaml:"url"`
	SHA256 string `yaml:"sha256"`

	Git        string `yaml:"git"`
	Tag        string `yaml:"tag"`
	Commit     string `yaml:"commit"`
	Branch     string `yaml:"branch"`
	Submodules bool   `yaml:"submodules"`
}

// Lookup returns the recipe for a package name.
func (p *Provider) Lookup(name string) (*domain.Recipe, error) {
	dir := filepath.Join(p.tree, name)
	path := filepath.Join(dir, RecipeFilename)

	data, err := os.ReadFile(path) //nolint:gosec // path derives from the configured tree
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(zerr.Wrap(domain.ErrRecipeNotFound, "no recipe in tree"), "package", name)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read recipe"), "package", name)
	}

	return parse(data, name, dir)
}

// ListAll returns every recipe in the tree, sorted by name.
func (p *Provider) ListAll() ([]*domain.Recipe, error) {
	entries, err := os.ReadDir(p.tree)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, "failed to read ports tree")
	}

	var all []*domain.Recipe
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		recipe, err := p.Lookup(entry.Name())
		if err != nil {
			if errors.Is(err, domain.ErrRecipeNotFound) {
				// Directory without a recipe file, e.g. scaffolding.
				continue
			}
			return nil, err
		}
		all = append(all, recipe)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name.String() < all[j].Name.String() })
	return all, nil
}

func parse(data []byte, name, dir string) (*domain.Recipe, error) {
	var dto recipeDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse recipe"), "package", name)
	}

	if dto.Name == "" {
		dto.Name = name
	}
	if dto.Name != name {
		err := zerr.New("recipe name does not match its directory")
		return nil, zerr.With(zerr.With(err, "package", name), "recipe_name", dto.Name)
	}
	if dto.Version == "" {
		return nil, zerr.With(zerr.New("recipe is missing a version"), "package", name)
	}
	if dto.Release == "" {
		dto.Release = "1"
	}

	depends := make([]domain.InternedString, 0, len(dto.Depends))
	for _, dep := range dto.Depends {
		stripped := domain.StripQualifier(dep)
		if stripped == "" {
			continue
		}
		depends = append(depends, domain.Intern(stripped))
	}

	sources := make([]domain.Source, 0, len(dto.Sources))
	for _, src := range dto.Sources {
		if src.Git != "" {
			if src.URL != "" {
				return nil, zerr.With(zerr.New("recipe source declares both url and git"), "package", name)
			}
			refs := 0
			for _, r := range []string{src.Tag, src.Commit, src.Branch} {
				if r != "" {
					refs++
				}
			}
			if refs > 1 {
				return nil, zerr.With(zerr.New("git source must pin at most one of tag, commit or branch"), "package", name)
			}
			sources = append(sources, domain.Source{Git: &domain.GitRef{
				Repo:       src.Git,
				Tag:        src.Tag,
				Commit:     src.Commit,
				Branch:     src.Branch,
				Submodules: src.Submodules,
			}})
			continue
		}
		if src.URL == "" {
			return nil, zerr.With(zerr.New("recipe source is missing a url"), "package", name)
		}
		sources = append(sources, domain.Source{URL: src.URL, SHA256: src.SHA256})
	}

	return &domain.Recipe{
		Name:        domain.Intern(dto.Name),
		Version:     dto.Version,
		Release:     dto.Release,
		Category:    dto.Category,
		Depends:     depends,
		Sources:     sources,
		Steps:       dto.Build,
		Environment: dto.Environment,
		Dir:         dir,
	}, nil
}
