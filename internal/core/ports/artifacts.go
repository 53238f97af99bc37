package ports

import "go.porto.sh/porto/internal/core/domain"

// ArtifactStore is the binary cache: storage keyed by (name, version,
// release) holding immutable built artifacts and their footprints.
type ArtifactStore interface {
	// Has reports whether an artifact with the given identity is cached.
	Has(id domain.Identity) bool

	// Save archives the staging tree under the given identity along with
	// its footprint. Saving an existing identity overwrites it.
	Save(id domain.Identity, stagingDir string, fp domain.Footprint) error

	// Footprint returns the stored footprint for the identity.
	// It returns domain.ErrArtifactNotFound when the artifact is missing.
	Footprint(id domain.Identity) (domain.Footprint, error)

	// Extract unpacks the artifact's file tree into destDir.
	Extract(id domain.Identity, destDir string) error
}
