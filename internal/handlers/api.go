package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/common"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// defaultHistoryLimit bounds /jobs/history responses without a limit param
const defaultHistoryLimit = 50

// APIHandler serves the process-level surface: health, version, status and
// job history.
type APIHandler struct {
	status     interfaces.StatusService
	supervisor interfaces.WorkerSupervisor
	archive    interfaces.ArchiveStorage
	startedAt  time.Time
	logger     arbor.ILogger
}

// NewAPIHandler creates an API handler
func NewAPIHandler(status interfaces.StatusService, supervisor interfaces.WorkerSupervisor, archive interfaces.ArchiveStorage, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		status:     status,
		supervisor: supervisor,
		archive:    archive,
		startedAt:  time.Now().UTC(),
		logger:     logger,
	}
}

// HealthHandler handles GET /health
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	payload := map[string]interface{}{
		"status":         "ok",
		"version":        common.Version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}
	if h.supervisor != nil {
		payload["running_workers"] = h.supervisor.Running()
	}
	WriteJSON(w, http.StatusOK, payload)
}

// VersionHandler handles GET /version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version": common.Version,
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// StatusHandler handles GET /status
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.status.GetStatus())
}

// HistoryHandler handles GET /jobs/history?limit=N&kind=forecast
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.archive == nil {
		WriteError(w, http.StatusNotFound, "job history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var (
		records []*models.JobRecord
		err     error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		if !models.IsValidJobKind(models.JobKind(kind)) {
			WriteError(w, http.StatusBadRequest, "unknown job kind "+strconv.Quote(kind))
			return
		}
		records, err = h.archive.ListByKind(models.JobKind(kind), limit)
	} else {
		records, err = h.archive.ListRecent(limit)
	}
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// NotFoundHandler answers unmatched routes with a JSON 404
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "not found")
}
