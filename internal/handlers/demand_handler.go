package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// DemandHandler serves the demand-forecasting surface: sector data reads,
// correlation tables and forecast job management.
type DemandHandler struct {
	jobs   interfaces.JobService
	logger arbor.ILogger
}

// NewDemandHandler creates a demand handler
func NewDemandHandler(jobs interfaces.JobService, logger arbor.ILogger) *DemandHandler {
	return &DemandHandler{
		jobs:   jobs,
		logger: logger,
	}
}

// SectorDataHandler handles GET /demand/sectors/{sector}
func (h *DemandHandler) SectorDataHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sector, ok := PathParam(r, "/demand/sectors/", "")
	if !ok {
		WriteError(w, http.StatusBadRequest, "sector name is required")
		return
	}

	data, source, err := h.jobs.SectorData(r.Context(), sector)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"source":  source,
		"data":    data,
	})
}

// CorrelationHandler handles GET /demand/correlation/{sector}
func (h *DemandHandler) CorrelationHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sector, ok := PathParam(r, "/demand/correlation/", "")
	if !ok {
		WriteError(w, http.StatusBadRequest, "sector name is required")
		return
	}

	data, source, err := h.jobs.Correlation(r.Context(), sector)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"source":  source,
		"data":    data,
	})
}

// ForecastHandler handles POST /demand/forecast
func (h *DemandHandler) ForecastHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.ForecastRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.jobs.SubmitForecast(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteAccepted(w, job.ID, "forecast job started")
}

// ForecastStatusHandler handles GET /demand/forecast/{id}/status
func (h *DemandHandler) ForecastStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID, ok := PathParam(r, "/demand/forecast/", "/status")
	if !ok {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.jobs.Status(models.JobKindForecast, jobID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ForecastCancelHandler handles POST /demand/forecast/{id}/cancel
func (h *DemandHandler) ForecastCancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID, ok := PathParam(r, "/demand/forecast/", "/cancel")
	if !ok {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	if err := h.jobs.Cancel(r.Context(), models.JobKindForecast, jobID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobId":   jobID,
		"message": "forecast job cancelled",
	})
}

// ListForecastJobsHandler handles GET /demand/forecast/jobs
func (h *DemandHandler) ListForecastJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobs := h.jobs.List(models.JobKindForecast)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
