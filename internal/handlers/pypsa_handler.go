package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// PypsaHandler serves power-system optimization jobs, discovered networks
// and solved-network result extraction.
type PypsaHandler struct {
	jobs    interfaces.JobService
	catalog interfaces.ResultCatalog
	logger  arbor.ILogger
}

// NewPypsaHandler creates a pypsa handler
func NewPypsaHandler(jobs interfaces.JobService, catalog interfaces.ResultCatalog, logger arbor.ILogger) *PypsaHandler {
	return &PypsaHandler{
		jobs:    jobs,
		catalog: catalog,
		logger:  logger,
	}
}

// OptimizeHandler handles POST /pypsa/optimize
func (h *PypsaHandler) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.OptimizationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.jobs.SubmitOptimization(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteAccepted(w, job.ID, "optimization job started")
}

// StatusHandler handles GET /pypsa/optimization/{id}/status
func (h *PypsaHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID, ok := PathParam(r, "/pypsa/optimization/", "/status")
	if !ok {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.jobs.Status(models.JobKindPypsa, jobID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// CancelHandler handles POST /pypsa/optimization/{id}/cancel
func (h *PypsaHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID, ok := PathParam(r, "/pypsa/optimization/", "/cancel")
	if !ok {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	if err := h.jobs.Cancel(r.Context(), models.JobKindPypsa, jobID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobId":   jobID,
		"message": "optimization job cancelled",
	})
}

// ListOptimizationsHandler handles GET /pypsa/optimizations
func (h *PypsaHandler) ListOptimizationsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobs := h.jobs.List(models.JobKindPypsa)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// NetworksHandler handles GET /pypsa/networks
func (h *PypsaHandler) NetworksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	networks, err := h.catalog.ListNetworks()
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"networks": networks,
		"count":    len(networks),
	})
}

// ExtractResultsHandler handles POST /pypsa/extract-results
func (h *PypsaHandler) ExtractResultsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.ExtractResultsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, source, err := h.jobs.ExtractResults(r.Context(), req.ScenarioName)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"source":  source,
		"results": result,
	})
}
