package discovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
	"github.com/ternarybob/fulmen/internal/services/artifacts"
)

func newTestCatalog(t *testing.T) (*Service, interfaces.ArtifactStore) {
	t.Helper()
	store, err := artifacts.NewService(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	return NewService(store, arbor.NewLogger()), store
}

func saveProfile(t *testing.T, store interfaces.ArtifactStore, doc *models.LoadProfileDocument) {
	t.Helper()
	require.NoError(t, store.SaveJSON(ProfileDir+"/"+doc.ProfileID+".json", doc))
}

func saveNetwork(t *testing.T, store interfaces.ArtifactStore, scenario string) {
	t.Helper()
	dir := filepath.Join(store.Root(), "results", "pypsa", scenario)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, scenario+".nc"), []byte("netcdf"), 0o644))
}

func TestRescanIndexesProfiles(t *testing.T) {
	catalog, store := newTestCatalog(t)

	saveProfile(t, store, &models.LoadProfileDocument{
		ProfileID:   "profile_2030",
		Method:      "base_scaling",
		GeneratedAt: time.Now().UTC(),
		Years:       []int{2026, 2030},
		Statistics:  &models.ProfileSummary{PeakLoad: 120, AverageLoad: 80, TotalEnergy: 700800, LoadFactor: 0.67},
	})
	require.NoError(t, catalog.Rescan())

	infos, err := catalog.ListProfiles()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "profile_2030", infos[0].ProfileID)
	assert.Equal(t, "base_scaling", infos[0].Method)
	assert.Equal(t, 120.0, infos[0].Summary.PeakLoad)
	assert.Positive(t, infos[0].SizeBytes)
}

func TestSummaryComputedWhenStatisticsAbsent(t *testing.T) {
	catalog, store := newTestCatalog(t)

	saveProfile(t, store, &models.LoadProfileDocument{
		ProfileID: "no_stats",
		Method:    "stl_decomposition",
		Data:      map[string][]float64{"2026": {10, 20, 30}},
	})
	require.NoError(t, catalog.Rescan())

	infos, err := catalog.ListProfiles()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 30.0, infos[0].Summary.PeakLoad)
	assert.Equal(t, 20.0, infos[0].Summary.AverageLoad)
	assert.Equal(t, 60.0, infos[0].Summary.TotalEnergy)
}

func TestMalformedProfileSkipped(t *testing.T) {
	catalog, store := newTestCatalog(t)

	saveProfile(t, store, &models.LoadProfileDocument{ProfileID: "good"})
	badPath := filepath.Join(store.Root(), "results", "load_profiles", "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{not json"), 0o644))

	require.NoError(t, catalog.Rescan())

	infos, err := catalog.ListProfiles()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "good", infos[0].ProfileID)
}

func TestGetProfileRescansOnIndexMiss(t *testing.T) {
	catalog, store := newTestCatalog(t)

	// Artifact exists on disk but the index has never been built.
	saveProfile(t, store, &models.LoadProfileDocument{ProfileID: "fresh", Method: "base_scaling"})

	doc, err := catalog.GetProfile("fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", doc.ProfileID)
	assert.Equal(t, "base_scaling", doc.Method)
}

func TestGetProfileUnknownID(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	_, err := catalog.GetProfile("never_generated")
	assert.ErrorIs(t, err, interfaces.ErrArtifactNotFound)
}

func TestProfileIDEscapeRejected(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	for _, id := range []string{"../secrets", "a/b", `a\b`, "..", ""} {
		_, err := catalog.GetProfile(id)
		assert.ErrorIs(t, err, interfaces.ErrPathEscape, "id %q must be rejected", id)

		err = catalog.DeleteProfile(id)
		assert.ErrorIs(t, err, interfaces.ErrPathEscape, "id %q must be rejected", id)
	}
}

func TestDeleteProfileRemovesArtifactAndIndexEntry(t *testing.T) {
	catalog, store := newTestCatalog(t)

	saveProfile(t, store, &models.LoadProfileDocument{ProfileID: "victim"})
	require.NoError(t, catalog.Rescan())

	require.NoError(t, catalog.DeleteProfile("victim"))
	assert.False(t, store.Exists(ProfileDir+"/victim.json"))

	infos, err := catalog.ListProfiles()
	require.NoError(t, err)
	assert.Empty(t, infos)

	assert.ErrorIs(t, catalog.DeleteProfile("victim"), interfaces.ErrArtifactNotFound)
}

func TestRescanDropsDeletedArtifacts(t *testing.T) {
	catalog, store := newTestCatalog(t)

	saveProfile(t, store, &models.LoadProfileDocument{ProfileID: "transient"})
	require.NoError(t, catalog.Rescan())
	require.NoError(t, store.Delete(ProfileDir+"/transient.json"))
	require.NoError(t, catalog.Rescan())

	infos, err := catalog.ListProfiles()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestNetworkDiscovery(t *testing.T) {
	catalog, store := newTestCatalog(t)

	saveNetwork(t, store, "base-2030")
	saveNetwork(t, store, "high-demand")

	// Directory without the expected .nc file is ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), "results", "pypsa", "incomplete"), 0o755))

	require.NoError(t, catalog.Rescan())

	networks, err := catalog.ListNetworks()
	require.NoError(t, err)
	require.Len(t, networks, 2)
	assert.Equal(t, "base-2030", networks[0].ScenarioName)
	assert.Equal(t, "results/pypsa/base-2030/base-2030.nc", networks[0].Path)
	assert.Equal(t, "high-demand", networks[1].ScenarioName)
	assert.Positive(t, networks[0].SizeBytes)
}

func TestEmptyRootScansClean(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	require.NoError(t, catalog.Rescan())

	profiles, err := catalog.ListProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)

	networks, err := catalog.ListNetworks()
	require.NoError(t, err)
	assert.Empty(t, networks)
}
