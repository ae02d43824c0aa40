package interfaces

import (
	"github.com/ternarybob/fulmen/internal/models"
)

// ValidationService enforces structural and semantic constraints on each
// job-kind's configuration before a worker is spawned. Validation is pure
// and has no side effects.
type ValidationService interface {
	ValidateForecast(req *models.ForecastRequest) models.ValidationResult
	ValidateProfile(req *models.ProfileRequest) models.ValidationResult
	ValidateOptimization(req *models.OptimizationRequest) models.ValidationResult
}
