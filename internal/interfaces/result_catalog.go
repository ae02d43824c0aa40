package interfaces

import (
	"github.com/ternarybob/fulmen/internal/models"
)

// ResultCatalog reconciles the in-memory artifact index with the files on
// disk. Listings serve from the index; Rescan rebuilds it, and lookups
// that miss the index trigger a rescan before failing.
type ResultCatalog interface {
	// ListProfiles returns metadata for every saved load profile
	ListProfiles() ([]*models.ProfileInfo, error)

	// GetProfile returns the full profile document by id.
	// Returns ErrArtifactNotFound for unknown ids and ErrPathEscape when
	// the id resolves outside the profile directory.
	GetProfile(profileID string) (*models.LoadProfileDocument, error)

	// DeleteProfile removes the profile artifact and drops it from the
	// index. Same error contract as GetProfile.
	DeleteProfile(profileID string) error

	// ListNetworks returns metadata for every discovered optimization
	// network
	ListNetworks() ([]*models.NetworkInfo, error)

	// Rescan rebuilds the index from disk
	Rescan() error
}
