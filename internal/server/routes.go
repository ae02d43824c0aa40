package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// System surface
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/status", s.app.APIHandler.StatusHandler)
	mux.HandleFunc("/jobs/history", s.app.APIHandler.HistoryHandler)

	// Real-time transport
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Demand forecasting
	mux.HandleFunc("/demand/sectors/", s.app.DemandHandler.SectorDataHandler)
	mux.HandleFunc("/demand/correlation/", s.app.DemandHandler.CorrelationHandler)
	mux.HandleFunc("/demand/forecast", s.app.DemandHandler.ForecastHandler)
	mux.HandleFunc("/demand/forecast/", s.handleForecastRoutes) // /jobs, /{id}/status, /{id}/cancel

	// Load profiles
	mux.HandleFunc("/loadprofile/generate", s.app.LoadProfileHandler.GenerateHandler)
	mux.HandleFunc("/loadprofile/jobs", s.app.LoadProfileHandler.ListJobsHandler)
	mux.HandleFunc("/loadprofile/jobs/", s.handleProfileJobRoutes) // /{id}/status, /{id}/cancel
	mux.HandleFunc("/loadprofile/profiles", s.app.LoadProfileHandler.ListProfilesHandler)
	mux.HandleFunc("/loadprofile/profiles/", s.app.LoadProfileHandler.ProfileHandler) // GET/DELETE /{id}
	mux.HandleFunc("/loadprofile/compare", s.app.LoadProfileHandler.CompareHandler)

	// Power-system optimization
	mux.HandleFunc("/pypsa/optimize", s.app.PypsaHandler.OptimizeHandler)
	mux.HandleFunc("/pypsa/optimization/", s.handleOptimizationRoutes) // /{id}/status, /{id}/cancel
	mux.HandleFunc("/pypsa/optimizations", s.app.PypsaHandler.ListOptimizationsHandler)
	mux.HandleFunc("/pypsa/networks", s.app.PypsaHandler.NetworksHandler)
	mux.HandleFunc("/pypsa/extract-results", s.app.PypsaHandler.ExtractResultsHandler)

	// JSON 404 for everything unmatched
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleForecastRoutes dispatches the /demand/forecast/ subtree
func (s *Server) handleForecastRoutes(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/demand/forecast/jobs" {
		s.app.DemandHandler.ListForecastJobsHandler(w, r)
		return
	}
	routeJobItem(w, r, s.app.DemandHandler.ForecastStatusHandler, s.app.DemandHandler.ForecastCancelHandler, s.notFound)
}

// handleProfileJobRoutes dispatches the /loadprofile/jobs/ subtree
func (s *Server) handleProfileJobRoutes(w http.ResponseWriter, r *http.Request) {
	routeJobItem(w, r, s.app.LoadProfileHandler.JobStatusHandler, s.app.LoadProfileHandler.JobCancelHandler, s.notFound)
}

// handleOptimizationRoutes dispatches the /pypsa/optimization/ subtree
func (s *Server) handleOptimizationRoutes(w http.ResponseWriter, r *http.Request) {
	routeJobItem(w, r, s.app.PypsaHandler.StatusHandler, s.app.PypsaHandler.CancelHandler, s.notFound)
}

// routeJobItem dispatches the shared /{id}/status and /{id}/cancel shapes
func routeJobItem(w http.ResponseWriter, r *http.Request, status, cancel, fallback http.HandlerFunc) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/status"):
		status(w, r)
	case strings.HasSuffix(r.URL.Path, "/cancel"):
		cancel(w, r)
	default:
		fallback(w, r)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.app.APIHandler.NotFoundHandler(w, r)
}
