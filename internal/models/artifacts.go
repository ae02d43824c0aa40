// -----------------------------------------------------------------------
// Artifacts - On-disk result metadata surfaced by discovery
// -----------------------------------------------------------------------

package models

import "time"

// ArtifactInfo describes one file under the artifact root
type ArtifactInfo struct {
	Path    string    `json:"path"` // relative to the artifact root
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir,omitempty"`
}

// ProfileSummary holds the headline statistics of a generated load profile
type ProfileSummary struct {
	PeakLoad    float64 `json:"peak_load"`
	AverageLoad float64 `json:"average_load"`
	TotalEnergy float64 `json:"total_energy"`
	LoadFactor  float64 `json:"load_factor"`
}

// LoadProfileDocument is the JSON document a profile worker writes to
// results/load_profiles/<profileId>.json. Statistics may be absent, in
// which case discovery computes a summary from the data series.
type LoadProfileDocument struct {
	ProfileID   string               `json:"profile_id"`
	Method      string               `json:"method"`
	GeneratedAt time.Time            `json:"generated_at"`
	Years       []int                `json:"years"`
	Statistics  *ProfileSummary      `json:"statistics,omitempty"`
	Data        map[string][]float64 `json:"data,omitempty"` // year -> hourly series
}

// ComputeSummary derives headline statistics from the document's data
// series. Returns a zero summary when no data points exist.
func (d *LoadProfileDocument) ComputeSummary() ProfileSummary {
	var summary ProfileSummary
	var count int

	for _, series := range d.Data {
		for _, v := range series {
			if v > summary.PeakLoad {
				summary.PeakLoad = v
			}
			summary.TotalEnergy += v
			count++
		}
	}

	if count > 0 {
		summary.AverageLoad = summary.TotalEnergy / float64(count)
	}
	if summary.PeakLoad > 0 {
		summary.LoadFactor = summary.AverageLoad / summary.PeakLoad
	}

	return summary
}

// ProfileInfo is the listing view of one saved load profile
type ProfileInfo struct {
	ProfileID   string         `json:"profile_id"`
	Method      string         `json:"method"`
	GeneratedAt time.Time      `json:"generated_at"`
	Years       []int          `json:"years"`
	Summary     ProfileSummary `json:"summary"`
	SizeBytes   int64          `json:"size_bytes"`
}

// NetworkInfo is the listing view of one discovered optimization network
type NetworkInfo struct {
	ScenarioName string    `json:"scenario_name"`
	Path         string    `json:"path"` // relative to the artifact root
	SizeBytes    int64     `json:"size_bytes"`
	ModTime      time.Time `json:"mod_time"`
}
