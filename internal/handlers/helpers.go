package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, models.ErrorResponse{Error: message})
}

// WriteValidationErrors writes a 400 response carrying the message array
func WriteValidationErrors(w http.ResponseWriter, errs []string) error {
	return WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Errors: errs})
}

// WriteAccepted acknowledges an accepted long-running submission with 202
func WriteAccepted(w http.ResponseWriter, jobID, message string) error {
	return WriteJSON(w, http.StatusAccepted, models.SubmitResponse{
		Success: true,
		JobID:   jobID,
		Message: message,
	})
}

// WriteServiceError maps a service-layer error to its HTTP response.
// Unclassified errors respond 500 with a generic message; details stay in
// the logs.
func WriteServiceError(w http.ResponseWriter, logger arbor.ILogger, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		WriteValidationErrors(w, vErr.Result.Errors)

	case errors.Is(err, interfaces.ErrJobNotFound),
		errors.Is(err, interfaces.ErrArtifactNotFound),
		errors.Is(err, interfaces.ErrRecordNotFound):
		WriteError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, interfaces.ErrNotCancellable),
		errors.Is(err, interfaces.ErrPathEscape),
		errors.Is(err, interfaces.ErrInvalidRequest):
		WriteError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, interfaces.ErrShuttingDown):
		WriteError(w, http.StatusServiceUnavailable, err.Error())

	case errors.Is(err, interfaces.ErrWorkerFailed),
		errors.Is(err, interfaces.ErrWorkerTimeout),
		errors.Is(err, interfaces.ErrWorkerCancelled):
		// Synchronous worker calls surface the classified message directly
		WriteError(w, http.StatusInternalServerError, err.Error())

	default:
		logger.Error().Err(err).Msg("Unhandled service error")
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// DecodeJSON decodes the request body into dest. A failure writes the 400
// response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts the single path segment between prefix and suffix,
// working on the escaped path so encoded traversal sequences survive into
// the id where the service layer rejects them. Returns false when the
// segment is empty or the shape does not match.
func PathParam(r *http.Request, prefix, suffix string) (string, bool) {
	path := r.URL.EscapedPath()
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	segment := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if segment == "" {
		return "", false
	}
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", false
	}
	return decoded, true
}
