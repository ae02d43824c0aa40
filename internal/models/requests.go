// -----------------------------------------------------------------------
// Job Requests - Submission payloads for the three job kinds
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"time"
)

// Forecast model names accepted in sector configurations
const (
	ForecastModelSLR        = "SLR"
	ForecastModelMLR        = "MLR"
	ForecastModelWAM        = "WAM"
	ForecastModelTimeSeries = "TimeSeries"
)

// Load-profile generation methods
const (
	ProfileMethodBaseScaling        = "base_scaling"
	ProfileMethodSTLDecomposition   = "stl_decomposition"
	ProfileMethodCustomTemplate     = "custom_template"
	ProfileMethodStatisticalSampling = "statistical_sampling"
)

// Optimization investment modes
const (
	InvestmentModeSingleYear = "single_year"
	InvestmentModeMultiYear  = "multi_year"
)

// KnownSolvers lists the solver backends the optimization worker accepts
var KnownSolvers = []string{"highs", "cbc", "glpk", "gurobi", "cplex"}

// SectorConfig configures the forecasting models for one demand sector
type SectorConfig struct {
	Models               []string `json:"models" validate:"required,min=1"`
	IndependentVariables []string `json:"independent_variables,omitempty"`
	Window               int      `json:"window,omitempty"`
}

// ForecastRequest is the payload for POST /demand/forecast
type ForecastRequest struct {
	ScenarioName string                  `json:"scenario_name" validate:"required"`
	TargetYear   int                     `json:"target_year" validate:"required"`
	Sectors      map[string]SectorConfig `json:"sectors" validate:"required,min=1"`

	// Optional per-request deadline override, e.g. "30m"
	Timeout string `json:"timeout,omitempty"`
}

// ProfileRequest is the payload for POST /loadprofile/generate
type ProfileRequest struct {
	ProfileName string `json:"profile_name,omitempty"`
	Method      string `json:"method" validate:"required"`
	StartYear   int    `json:"start_year" validate:"required"`
	EndYear     int    `json:"end_year" validate:"required"`

	// Required when method is base_scaling
	BaseYear int `json:"base_year,omitempty"`

	// Method-specific knobs passed through to the worker untouched
	Options map[string]interface{} `json:"options,omitempty"`

	Timeout string `json:"timeout,omitempty"`
}

// SolverOptions configures the optimization solver backend
type SolverOptions struct {
	Solver    string  `json:"solver,omitempty"`
	TimeLimit int     `json:"time_limit,omitempty"` // seconds
	MIPGap    float64 `json:"mip_gap,omitempty"`
}

// OptimizationRequest is the payload for POST /pypsa/optimize
type OptimizationRequest struct {
	ScenarioName   string        `json:"scenario_name" validate:"required"`
	BaseYear       int           `json:"base_year" validate:"required"`
	InvestmentMode string        `json:"investment_mode" validate:"required"`
	SolverOptions  SolverOptions `json:"solver_options,omitempty"`

	Timeout string `json:"timeout,omitempty"`
}

// CompareRequest is the payload for POST /loadprofile/compare.
// Comparison runs synchronously against saved profile artifacts.
type CompareRequest struct {
	ProfileIDs []string `json:"profile_ids" validate:"required,min=2"`
}

// ExtractResultsRequest is the payload for POST /pypsa/extract-results
type ExtractResultsRequest struct {
	ScenarioName string `json:"scenario_name" validate:"required"`
}

// TimeoutOverride parses the optional timeout field. An empty field returns
// zero with no error; callers fall back to the kind default.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// TimeoutOverride returns the requested deadline override, zero if unset
func (r *ForecastRequest) TimeoutOverride() (time.Duration, error) { return parseTimeout(r.Timeout) }

// TimeoutOverride returns the requested deadline override, zero if unset
func (r *ProfileRequest) TimeoutOverride() (time.Duration, error) { return parseTimeout(r.Timeout) }

// TimeoutOverride returns the requested deadline override, zero if unset
func (r *OptimizationRequest) TimeoutOverride() (time.Duration, error) {
	return parseTimeout(r.Timeout)
}

// toConfigMap converts a request to a generic config map for job storage
// and worker invocation. Uses JSON marshal/unmarshal for clean type conversion.
func toConfigMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ToConfigMap converts the request to the job's immutable config map
func (r *ForecastRequest) ToConfigMap() (map[string]interface{}, error) { return toConfigMap(r) }

// ToConfigMap converts the request to the job's immutable config map
func (r *ProfileRequest) ToConfigMap() (map[string]interface{}, error) { return toConfigMap(r) }

// ToConfigMap converts the request to the job's immutable config map
func (r *OptimizationRequest) ToConfigMap() (map[string]interface{}, error) { return toConfigMap(r) }
