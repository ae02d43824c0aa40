package models

import (
	"fmt"
	"strings"
)

// ValidationResult is the outcome of validating a job configuration.
// Valid is true only when Errors is empty.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// OK returns a passing validation result
func OK() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing validation result carrying the given messages
func Invalid(errors ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: errors}
}

// AddError appends a message and marks the result invalid
func (r *ValidationResult) AddError(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// ValidationError wraps a failed ValidationResult as an error so service
// methods can return it through a single error channel. Handlers unwrap it
// with errors.As and respond 400 with the message array.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Result.Errors, "; ")
}

// NewValidationError builds a ValidationError from a failed result
func NewValidationError(result ValidationResult) *ValidationError {
	return &ValidationError{Result: result}
}
