package domain

// Identity is the tuple addressing one built artifact in the binary cache.
type Identity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Release string `json:"release"`
}

// String returns the canonical name-version-release form used for cache keys
// and staging directory names.
func (id Identity) String() string {
	return id.Name + "-" + id.Version + "-" + id.Release
}

// VersionRelease returns the version-release part of the identity.
func (id Identity) VersionRelease() string {
	return id.Version + "-" + id.Release
}
