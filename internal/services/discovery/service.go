// Package discovery reconciles the in-memory result index with the files
// workers leave on disk. Listings serve from the index; Rescan rebuilds
// it, and lookups that miss the index rescan once before giving up.
package discovery

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

const (
	// ProfileDir holds one JSON document per generated load profile
	ProfileDir = "results/load_profiles"

	// NetworkDir holds one subdirectory per optimized scenario
	NetworkDir = "results/pypsa"
)

// Service implements ResultCatalog over an ArtifactStore
type Service struct {
	store  interfaces.ArtifactStore
	logger arbor.ILogger

	mu       sync.RWMutex
	profiles map[string]*models.ProfileInfo
	networks map[string]*models.NetworkInfo
}

// NewService creates a discovery service. The index starts empty; callers
// typically Rescan once at startup.
func NewService(store interfaces.ArtifactStore, logger arbor.ILogger) *Service {
	return &Service{
		store:    store,
		logger:   logger,
		profiles: make(map[string]*models.ProfileInfo),
		networks: make(map[string]*models.NetworkInfo),
	}
}

// Rescan rebuilds the index from disk. Unreadable or malformed files are
// skipped with a warning rather than failing the whole scan.
func (s *Service) Rescan() error {
	profiles, err := s.scanProfiles()
	if err != nil {
		return err
	}
	networks, err := s.scanNetworks()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.profiles = profiles
	s.networks = networks
	s.mu.Unlock()

	s.logger.Debug().
		Int("profiles", len(profiles)).
		Int("networks", len(networks)).
		Msg("Result index rebuilt")
	return nil
}

// ListProfiles returns metadata for every saved load profile, sorted by
// profile id for stable output.
func (s *Service) ListProfiles() ([]*models.ProfileInfo, error) {
	s.mu.RLock()
	infos := make([]*models.ProfileInfo, 0, len(s.profiles))
	for _, info := range s.profiles {
		copied := *info
		infos = append(infos, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ProfileID < infos[j].ProfileID })
	return infos, nil
}

// GetProfile returns the full profile document by id. An index miss
// triggers one rescan before the lookup fails.
func (s *Service) GetProfile(profileID string) (*models.LoadProfileDocument, error) {
	relPath, err := profilePath(profileID)
	if err != nil {
		return nil, err
	}

	if !s.indexedProfile(profileID) {
		if err := s.Rescan(); err != nil {
			return nil, err
		}
		if !s.indexedProfile(profileID) {
			return nil, interfaces.ErrArtifactNotFound
		}
	}

	var doc models.LoadProfileDocument
	if err := s.store.ReadJSON(relPath, &doc); err != nil {
		return nil, err
	}
	if doc.ProfileID == "" {
		doc.ProfileID = profileID
	}
	return &doc, nil
}

// DeleteProfile removes the profile artifact and drops it from the index
func (s *Service) DeleteProfile(profileID string) error {
	relPath, err := profilePath(profileID)
	if err != nil {
		return err
	}

	if !s.indexedProfile(profileID) {
		if err := s.Rescan(); err != nil {
			return err
		}
		if !s.indexedProfile(profileID) {
			return interfaces.ErrArtifactNotFound
		}
	}

	if err := s.store.Delete(relPath); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.profiles, profileID)
	s.mu.Unlock()

	s.logger.Info().Str("profile_id", profileID).Msg("Load profile deleted")
	return nil
}

// ListNetworks returns metadata for every discovered optimization network,
// sorted by scenario name.
func (s *Service) ListNetworks() ([]*models.NetworkInfo, error) {
	s.mu.RLock()
	infos := make([]*models.NetworkInfo, 0, len(s.networks))
	for _, info := range s.networks {
		copied := *info
		infos = append(infos, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ScenarioName < infos[j].ScenarioName })
	return infos, nil
}

func (s *Service) indexedProfile(profileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[profileID]
	return ok
}

func (s *Service) scanProfiles() (map[string]*models.ProfileInfo, error) {
	entries, err := s.store.List(ProfileDir)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*models.ProfileInfo)
	for _, entry := range entries {
		if entry.IsDir || !strings.HasSuffix(entry.Path, ".json") {
			continue
		}
		profileID := strings.TrimSuffix(filepath.Base(entry.Path), ".json")

		var doc models.LoadProfileDocument
		if err := s.store.ReadJSON(entry.Path, &doc); err != nil {
			s.logger.Warn().Str("path", entry.Path).Err(err).Msg("Skipping unreadable profile artifact")
			continue
		}

		summary := doc.ComputeSummary()
		if doc.Statistics != nil {
			summary = *doc.Statistics
		}

		profiles[profileID] = &models.ProfileInfo{
			ProfileID:   profileID,
			Method:      doc.Method,
			GeneratedAt: doc.GeneratedAt,
			Years:       doc.Years,
			Summary:     summary,
			SizeBytes:   entry.Size,
		}
	}
	return profiles, nil
}

func (s *Service) scanNetworks() (map[string]*models.NetworkInfo, error) {
	entries, err := s.store.List(NetworkDir)
	if err != nil {
		return nil, err
	}

	networks := make(map[string]*models.NetworkInfo)
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		scenario := filepath.Base(entry.Path)
		netPath := filepath.ToSlash(filepath.Join(NetworkDir, scenario, scenario+".nc"))

		info, err := s.store.Stat(netPath)
		if err != nil {
			if errors.Is(err, interfaces.ErrArtifactNotFound) {
				continue
			}
			return nil, err
		}

		networks[scenario] = &models.NetworkInfo{
			ScenarioName: scenario,
			Path:         netPath,
			SizeBytes:    info.Size,
			ModTime:      info.ModTime,
		}
	}
	return networks, nil
}

// profilePath maps a profile id to its artifact path, rejecting ids that
// could reach outside the profile directory.
func profilePath(profileID string) (string, error) {
	if profileID == "" ||
		strings.ContainsAny(profileID, `/\`) ||
		strings.Contains(profileID, "..") {
		return "", interfaces.ErrPathEscape
	}
	return ProfileDir + "/" + profileID + ".json", nil
}

// Ensure Service implements ResultCatalog interface
var _ interfaces.ResultCatalog = (*Service)(nil)
