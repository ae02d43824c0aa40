package models

// SubmitResponse acknowledges an accepted long-running job submission
type SubmitResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON error body for failed requests.
// Validation failures populate Errors; single-cause failures populate Error.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}
