// Package validation enforces structural and semantic constraints on each
// job-kind's configuration before a worker is spawned. Structural rules
// are declared as validator tags on the request models; semantic rules the
// tags cannot express are checked stepwise after the tag pass. Validation
// is pure and has no side effects.
package validation

import (
	"regexp"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// scenarioNamePattern restricts names that become directory and file names
var scenarioNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// maxTargetYearOffset bounds forecast horizons relative to the current year
const maxTargetYearOffset = 50

// historicalStartYear is the earliest year with usable historical demand
// data; base_scaling base years must fall at or after it.
const historicalStartYear = 1990

// Service implements per-kind config validation
type Service struct {
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a validation service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		validate: validator.New(),
		logger:   logger,
	}
}

// tagPass runs the struct-tag validation and converts failures to
// human-readable messages.
func (s *Service) tagPass(result *models.ValidationResult, req interface{}) {
	if err := s.validate.Struct(req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				result.AddError("field %s fails constraint %q", fe.Field(), fe.Tag())
			}
			return
		}
		result.AddError("invalid request structure: %v", err)
	}
}

// ValidateForecast checks a demand forecast configuration
func (s *Service) ValidateForecast(req *models.ForecastRequest) models.ValidationResult {
	result := models.OK()
	if req == nil {
		result.AddError("request body is required")
		return result
	}

	s.tagPass(&result, req)

	if req.ScenarioName != "" && !scenarioNamePattern.MatchString(req.ScenarioName) {
		result.AddError("scenario_name %q may only contain letters, digits, '_', '-' and '.'", req.ScenarioName)
	}

	currentYear := time.Now().Year()
	if req.TargetYear != 0 && (req.TargetYear < currentYear || req.TargetYear > currentYear+maxTargetYearOffset) {
		result.AddError("target_year %d must be between %d and %d", req.TargetYear, currentYear, currentYear+maxTargetYearOffset)
	}

	// Deterministic error ordering across map iteration
	sectors := make([]string, 0, len(req.Sectors))
	for name := range req.Sectors {
		sectors = append(sectors, name)
	}
	sort.Strings(sectors)

	for _, name := range sectors {
		s.validateSector(&result, name, req.Sectors[name])
	}

	return result
}

func (s *Service) validateSector(result *models.ValidationResult, name string, cfg models.SectorConfig) {
	if name == "" {
		result.AddError("sector name cannot be empty")
		return
	}
	if len(cfg.Models) == 0 {
		result.AddError("sector %s requires at least one model", name)
		return
	}

	for _, model := range cfg.Models {
		switch model {
		case models.ForecastModelSLR, models.ForecastModelTimeSeries:
			// no extra requirements
		case models.ForecastModelMLR:
			if len(cfg.IndependentVariables) == 0 {
				result.AddError("sector %s: model MLR requires independent_variables", name)
			}
		case models.ForecastModelWAM:
			if cfg.Window <= 0 {
				result.AddError("sector %s: model WAM requires a positive window", name)
			}
		default:
			result.AddError("sector %s: unknown model %q (choose from SLR, MLR, WAM, TimeSeries)", name, model)
		}
	}
}

// ValidateProfile checks a load-profile generation configuration
func (s *Service) ValidateProfile(req *models.ProfileRequest) models.ValidationResult {
	result := models.OK()
	if req == nil {
		result.AddError("request body is required")
		return result
	}

	s.tagPass(&result, req)

	switch req.Method {
	case models.ProfileMethodBaseScaling,
		models.ProfileMethodSTLDecomposition,
		models.ProfileMethodCustomTemplate,
		models.ProfileMethodStatisticalSampling:
	case "":
		// required tag already reported it
	default:
		result.AddError("unknown method %q (choose from base_scaling, stl_decomposition, custom_template, statistical_sampling)", req.Method)
	}

	if req.StartYear != 0 && req.EndYear != 0 && req.StartYear > req.EndYear {
		result.AddError("start_year %d must not be after end_year %d", req.StartYear, req.EndYear)
	}

	if req.Method == models.ProfileMethodBaseScaling {
		currentYear := time.Now().Year()
		if req.BaseYear == 0 {
			result.AddError("method base_scaling requires base_year")
		} else if req.BaseYear < historicalStartYear || req.BaseYear > currentYear {
			result.AddError("base_year %d must be within the historical range %d..%d", req.BaseYear, historicalStartYear, currentYear)
		}
	}

	if req.ProfileName != "" && !scenarioNamePattern.MatchString(req.ProfileName) {
		result.AddError("profile_name %q may only contain letters, digits, '_', '-' and '.'", req.ProfileName)
	}

	return result
}

// ValidateOptimization checks a power-system optimization configuration
func (s *Service) ValidateOptimization(req *models.OptimizationRequest) models.ValidationResult {
	result := models.OK()
	if req == nil {
		result.AddError("request body is required")
		return result
	}

	s.tagPass(&result, req)

	if req.ScenarioName != "" && !scenarioNamePattern.MatchString(req.ScenarioName) {
		result.AddError("scenario_name %q may only contain letters, digits, '_', '-' and '.'", req.ScenarioName)
	}

	switch req.InvestmentMode {
	case models.InvestmentModeSingleYear, models.InvestmentModeMultiYear:
	case "":
		// required tag already reported it
	default:
		result.AddError("unknown investment_mode %q (choose from single_year, multi_year)", req.InvestmentMode)
	}

	if req.SolverOptions.Solver != "" && !isKnownSolver(req.SolverOptions.Solver) {
		result.AddError("unknown solver %q (choose from %v)", req.SolverOptions.Solver, models.KnownSolvers)
	}
	if req.SolverOptions.TimeLimit < 0 {
		result.AddError("solver time_limit must be positive, got %d", req.SolverOptions.TimeLimit)
	}
	if req.SolverOptions.MIPGap < 0 {
		result.AddError("solver mip_gap must be positive, got %g", req.SolverOptions.MIPGap)
	}

	return result
}

func isKnownSolver(name string) bool {
	for _, s := range models.KnownSolvers {
		if s == name {
			return true
		}
	}
	return false
}

// Ensure Service implements ValidationService interface
var _ interfaces.ValidationService = (*Service)(nil)
