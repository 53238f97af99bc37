// Package domain contains the core domain models for the package manager:
// recipes, artifacts, footprints and installed records.
package domain

import "strings"

// Source is one declared source of a recipe: either an archive URL with an
// optional hex-encoded sha256 digest, or a git reference.
type Source struct {
	URL    string
	SHA256 string

	// Git, when set, makes this a checkout source; URL and SHA256 are
	// empty in that case. Integrity comes from the pinned commit.
	Git *GitRef
}

// GitRef addresses a git source: a repository and at most one of tag, commit
// or branch. With none set, the remote HEAD is used.
type GitRef struct {
	Repo       string
	Tag        string
	Commit     string
	Branch     string
	Submodules bool
}

// ResolvedRef returns the full ref to check out.
func (g GitRef) ResolvedRef() string {
	switch {
	case g.Commit != "":
		return g.Commit
	case g.Tag != "":
		return "refs/tags/" + g.Tag
	case g.Branch != "":
		return "refs/heads/" + g.Branch
	}
	return "HEAD"
}

// Key returns the cache identity of the reference, repo plus declared ref.
func (g GitRef) Key() string {
	return g.Repo + "@" + g.ResolvedRef()
}

// Recipe is the declarative description of how to build one package. It is
// immutable once read for a build; the recipe provider owns its lifecycle.
type Recipe struct {
	Name     InternedString
	Version  string
	Release  string
	Category string

	// Depends holds dependency names in declaration order, with version
	// qualifiers already stripped. Only identity is used for graph edges.
	Depends []InternedString

	Sources []Source

	// Steps are the opaque build instructions, one argv vector per step,
	// executed sequentially in the unpacked source directory.
	Steps [][]string

	// Environment holds recipe-defined overrides applied on top of the
	// DESTDIR/PREFIX contract.
	Environment map[string]string

	// Dir is the recipe's directory in the ports tree, used to locate
	// patches and auxiliary files. Not part of the recipe's identity.
	Dir string
}

// Identity returns the artifact identity this recipe builds.
func (r *Recipe) Identity() Identity {
	return Identity{
		Name:    r.Name.String(),
		Version: r.Version,
		Release: r.Release,
	}
}

// DependNames returns the dependency names as plain strings, in declaration
// order.
func (r *Recipe) DependNames() []string {
	if len(r.Depends) == 0 {
		return nil
	}
	names := make([]string, len(r.Depends))
	for i, dep := range r.Depends {
		names[i] = dep.String()
	}
	return names
}

// VersionRelease returns the combined version-release string recorded for
// installed packages and compared during upgrade candidate scans.
func (r *Recipe) VersionRelease() string {
	return r.Version + "-" + r.Release
}

// StripQualifier removes a trailing version constraint from a dependency name,
// e.g. "make>=4.0" becomes "make". Dependency ordering uses identity only.
func StripQualifier(dep string) string {
	if i := strings.IndexAny(dep, "<>="); i >= 0 {
		return strings.TrimSpace(dep[:i])
	}
	return strings.TrimSpace(dep)
}
