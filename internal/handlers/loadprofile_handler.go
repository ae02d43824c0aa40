package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// LoadProfileHandler serves load-profile generation jobs and the saved
// profile catalog.
type LoadProfileHandler struct {
	jobs    interfaces.JobService
	catalog interfaces.ResultCatalog
	logger  arbor.ILogger
}

// NewLoadProfileHandler creates a load-profile handler
func NewLoadProfileHandler(jobs interfaces.JobService, catalog interfaces.ResultCatalog, logger arbor.ILogger) *LoadProfileHandler {
	return &LoadProfileHandler{
		jobs:    jobs,
		catalog: catalog,
		logger:  logger,
	}
}

// GenerateHandler handles POST /loadprofile/generate
func (h *LoadProfileHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.ProfileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.jobs.SubmitProfile(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteAccepted(w, job.ID, "load profile generation started")
}

// JobStatusHandler handles GET /loadprofile/jobs/{id}/status
func (h *LoadProfileHandler) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID, ok := PathParam(r, "/loadprofile/jobs/", "/status")
	if !ok {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.jobs.Status(models.JobKindProfile, jobID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// JobCancelHandler handles POST /loadprofile/jobs/{id}/cancel
func (h *LoadProfileHandler) JobCancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID, ok := PathParam(r, "/loadprofile/jobs/", "/cancel")
	if !ok {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	if err := h.jobs.Cancel(r.Context(), models.JobKindProfile, jobID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobId":   jobID,
		"message": "load profile job cancelled",
	})
}

// ListJobsHandler handles GET /loadprofile/jobs
func (h *LoadProfileHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobs := h.jobs.List(models.JobKindProfile)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// ListProfilesHandler handles GET /loadprofile/profiles
func (h *LoadProfileHandler) ListProfilesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	profiles, err := h.catalog.ListProfiles()
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// ProfileHandler handles GET and DELETE /loadprofile/profiles/{id}
func (h *LoadProfileHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := PathParam(r, "/loadprofile/profiles/", "")
	if !ok {
		WriteError(w, http.StatusBadRequest, "profile id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := h.catalog.GetProfile(profileID)
		if err != nil {
			WriteServiceError(w, h.logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, doc)

	case http.MethodDelete:
		if err := h.catalog.DeleteProfile(profileID); err != nil {
			WriteServiceError(w, h.logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "profile deleted",
		})

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// CompareHandler handles POST /loadprofile/compare
func (h *LoadProfileHandler) CompareHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.CompareRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.jobs.CompareProfiles(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
