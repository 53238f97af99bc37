package domain

// InstalledRecord is the persisted registration of one installed package.
// It exists from first successful install until removal or replacement by an
// upgrade, and is mutated only by the install/remove engine.
type InstalledRecord struct {
	Name           string
	VersionRelease string

	// Explicit marks packages the user asked for by name. Dependencies
	// pulled in to satisfy them are implicit and become orphan candidates
	// once nothing explicit requires them.
	Explicit bool

	// Depends is the dependency list recorded at install time. Orphan
	// scans use it instead of the live recipe tree, so removal stays
	// correct after a recipe disappears.
	Depends []string

	// Files is the ordered list of paths the package owns, including paths
	// that were policy-preserved on disk (owned but not overwritten).
	Files []string

	Footprint Footprint
}

// Owns reports whether the record lists the given path.
func (r *InstalledRecord) Owns(path string) bool {
	for _, f := range r.Files {
		if f == path {
			return true
		}
	}
	return false
}
