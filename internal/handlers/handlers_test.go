package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// stubJobService scripts JobService responses for handler tests
type stubJobService struct {
	submitJob  *models.Job
	submitErr  error
	statusJob  *models.Job
	statusErr  error
	cancelErr  error
	summaries  []*models.JobSummary
	data       map[string]interface{}
	source     string
	dataErr    error
	compare    map[string]interface{}
	compareErr error

	lastSector   string
	lastScenario string
	lastKind     models.JobKind
	lastJobID    string
}

func (s *stubJobService) SubmitForecast(context.Context, *models.ForecastRequest) (*models.Job, error) {
	return s.submitJob, s.submitErr
}

func (s *stubJobService) SubmitProfile(context.Context, *models.ProfileRequest) (*models.Job, error) {
	return s.submitJob, s.submitErr
}

func (s *stubJobService) SubmitOptimization(context.Context, *models.OptimizationRequest) (*models.Job, error) {
	return s.submitJob, s.submitErr
}

func (s *stubJobService) Status(kind models.JobKind, jobID string) (*models.Job, error) {
	s.lastKind, s.lastJobID = kind, jobID
	return s.statusJob, s.statusErr
}

func (s *stubJobService) List(models.JobKind) []*models.JobSummary { return s.summaries }

func (s *stubJobService) Cancel(_ context.Context, kind models.JobKind, jobID string) error {
	s.lastKind, s.lastJobID = kind, jobID
	return s.cancelErr
}

func (s *stubJobService) SectorData(_ context.Context, sector string) (map[string]interface{}, string, error) {
	s.lastSector = sector
	return s.data, s.source, s.dataErr
}

func (s *stubJobService) Correlation(_ context.Context, sector string) (map[string]interface{}, string, error) {
	s.lastSector = sector
	return s.data, s.source, s.dataErr
}

func (s *stubJobService) CompareProfiles(context.Context, *models.CompareRequest) (map[string]interface{}, error) {
	return s.compare, s.compareErr
}

func (s *stubJobService) ExtractResults(_ context.Context, scenario string) (map[string]interface{}, string, error) {
	s.lastScenario = scenario
	return s.data, s.source, s.dataErr
}

func (s *stubJobService) Shutdown(context.Context) error { return nil }

// stubCatalog scripts ResultCatalog responses
type stubCatalog struct {
	doc        *models.LoadProfileDocument
	docErr     error
	deleteErr  error
	profiles   []*models.ProfileInfo
	networks   []*models.NetworkInfo
	deletedIDs []string
}

func (s *stubCatalog) ListProfiles() ([]*models.ProfileInfo, error) { return s.profiles, nil }

func (s *stubCatalog) GetProfile(string) (*models.LoadProfileDocument, error) {
	return s.doc, s.docErr
}

func (s *stubCatalog) DeleteProfile(id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

func (s *stubCatalog) ListNetworks() ([]*models.NetworkInfo, error) { return s.networks, nil }
func (s *stubCatalog) Rescan() error                                { return nil }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestForecastSubmissionAccepted(t *testing.T) {
	jobs := &stubJobService{submitJob: &models.Job{ID: "job-1", Kind: models.JobKindForecast, Status: models.JobStatusQueued}}
	handler := NewDemandHandler(jobs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/demand/forecast",
		strings.NewReader(`{"scenario_name":"base","target_year":2030,"sectors":{"residential":{"models":["SLR"]}}}`))
	rec := httptest.NewRecorder()
	handler.ForecastHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "job-1", body["jobId"])
}

func TestForecastValidationFailure(t *testing.T) {
	jobs := &stubJobService{
		submitErr: models.NewValidationError(models.Invalid("scenario_name is required", "target_year is required")),
	}
	handler := NewDemandHandler(jobs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/demand/forecast", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ForecastHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	require.Len(t, body["errors"], 2)
}

func TestForecastMalformedBody(t *testing.T) {
	handler := NewDemandHandler(&stubJobService{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/demand/forecast", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()
	handler.ForecastHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastStatusUnknownJob(t *testing.T) {
	jobs := &stubJobService{statusErr: interfaces.ErrJobNotFound}
	handler := NewDemandHandler(jobs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/demand/forecast/ghost/status", nil)
	rec := httptest.NewRecorder()
	handler.ForecastStatusHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ghost", jobs.lastJobID)
	assert.Equal(t, models.JobKindForecast, jobs.lastKind)
}

func TestForecastStatusSnapshot(t *testing.T) {
	jobs := &stubJobService{statusJob: &models.Job{
		ID:       "job-1",
		Kind:     models.JobKindForecast,
		Status:   models.JobStatusRunning,
		Progress: 42,
	}}
	handler := NewDemandHandler(jobs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/demand/forecast/job-1/status", nil)
	rec := httptest.NewRecorder()
	handler.ForecastStatusHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(42), body["progress"])
}

func TestCancelNotCancellable(t *testing.T) {
	jobs := &stubJobService{cancelErr: interfaces.ErrNotCancellable}
	handler := NewDemandHandler(jobs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/demand/forecast/job-1/cancel", nil)
	rec := httptest.NewRecorder()
	handler.ForecastCancelHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelSuccess(t *testing.T) {
	jobs := &stubJobService{}
	handler := NewPypsaHandler(jobs, &stubCatalog{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/pypsa/optimization/job-9/cancel", nil)
	rec := httptest.NewRecorder()
	handler.CancelHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.JobKindPypsa, jobs.lastKind)
	assert.Equal(t, "job-9", jobs.lastJobID)
}

func TestSectorDataReportsSource(t *testing.T) {
	jobs := &stubJobService{data: map[string]interface{}{"sector": "residential"}, source: "cache"}
	handler := NewDemandHandler(jobs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/demand/sectors/residential", nil)
	rec := httptest.NewRecorder()
	handler.SectorDataHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, "residential", jobs.lastSector)
}

func TestSectorDataInvalidName(t *testing.T) {
	jobs := &stubJobService{dataErr: fmt.Errorf("%w: invalid name", interfaces.ErrInvalidRequest)}
	handler := NewDemandHandler(jobs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/demand/sectors/%2e%2e%2fetc", nil)
	rec := httptest.NewRecorder()
	handler.SectorDataHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileDeleteTraversalRejected(t *testing.T) {
	catalog := &stubCatalog{deleteErr: interfaces.ErrPathEscape}
	handler := NewLoadProfileHandler(&stubJobService{}, catalog, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodDelete, "/loadprofile/profiles/%2e%2e%2fsecrets", nil)
	rec := httptest.NewRecorder()
	handler.ProfileHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, catalog.deletedIDs, "traversal delete must have no side effect")
}

func TestProfileFetchAndDelete(t *testing.T) {
	catalog := &stubCatalog{doc: &models.LoadProfileDocument{ProfileID: "p1", Method: "base_scaling"}}
	handler := NewLoadProfileHandler(&stubJobService{}, catalog, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/loadprofile/profiles/p1", nil)
	rec := httptest.NewRecorder()
	handler.ProfileHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "p1", body["profile_id"])

	req = httptest.NewRequest(http.MethodDelete, "/loadprofile/profiles/p1", nil)
	rec = httptest.NewRecorder()
	handler.ProfileHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"p1"}, catalog.deletedIDs)
}

func TestProfileUnknownID(t *testing.T) {
	catalog := &stubCatalog{docErr: interfaces.ErrArtifactNotFound}
	handler := NewLoadProfileHandler(&stubJobService{}, catalog, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/loadprofile/profiles/missing", nil)
	rec := httptest.NewRecorder()
	handler.ProfileHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareProfilesEndpoint(t *testing.T) {
	jobs := &stubJobService{compare: map[string]interface{}{
		"profiles": []interface{}{},
		"deltas":   map[string]interface{}{},
	}}
	handler := NewLoadProfileHandler(jobs, &stubCatalog{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/loadprofile/compare",
		strings.NewReader(`{"profile_ids":["a","b"]}`))
	rec := httptest.NewRecorder()
	handler.CompareHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "deltas")
}

func TestExtractResultsEndpoint(t *testing.T) {
	jobs := &stubJobService{data: map[string]interface{}{"objective": 12.5}, source: "script"}
	handler := NewPypsaHandler(jobs, &stubCatalog{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/pypsa/extract-results",
		strings.NewReader(`{"scenario_name":"base-2030"}`))
	rec := httptest.NewRecorder()
	handler.ExtractResultsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "script", body["source"])
	assert.Equal(t, "base-2030", jobs.lastScenario)
}

func TestSubmissionDuringShutdown(t *testing.T) {
	jobs := &stubJobService{submitErr: interfaces.ErrShuttingDown}
	handler := NewPypsaHandler(jobs, &stubCatalog{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/pypsa/optimize",
		strings.NewReader(`{"scenario_name":"base","base_year":2024,"investment_mode":"single_year"}`))
	rec := httptest.NewRecorder()
	handler.OptimizeHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodEnforcement(t *testing.T) {
	handler := NewDemandHandler(&stubJobService{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/demand/forecast", nil)
	rec := httptest.NewRecorder()
	handler.ForecastHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPathParam(t *testing.T) {
	cases := []struct {
		path, prefix, suffix string
		want                 string
		ok                   bool
	}{
		{"/demand/forecast/job-1/status", "/demand/forecast/", "/status", "job-1", true},
		{"/loadprofile/profiles/p1", "/loadprofile/profiles/", "", "p1", true},
		{"/loadprofile/profiles/%2e%2e%2fx", "/loadprofile/profiles/", "", "../x", true},
		{"/demand/forecast//status", "/demand/forecast/", "/status", "", false},
		{"/other/path", "/demand/forecast/", "/status", "", false},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		got, ok := PathParam(req, tc.prefix, tc.suffix)
		assert.Equal(t, tc.ok, ok, tc.path)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.path)
		}
	}
}

// stubStatus provides a fixed status snapshot
type stubStatus struct{ state interfaces.AppState }

func (s *stubStatus) SetState(state interfaces.AppState, _ string) { s.state = state }
func (s *stubStatus) GetState() interfaces.AppState              { return s.state }
func (s *stubStatus) SetMetadata(string, interface{})            {}
func (s *stubStatus) GetStatus() map[string]interface{} {
	return map[string]interface{}{"state": string(s.state)}
}

// stubArchive serves canned history records
type stubArchive struct {
	records  []*models.JobRecord
	lastKind models.JobKind
}

func (s *stubArchive) SaveJob(*models.JobRecord) error          { return nil }
func (s *stubArchive) GetJob(string) (*models.JobRecord, error) { return nil, interfaces.ErrRecordNotFound }
func (s *stubArchive) ListRecent(limit int) ([]*models.JobRecord, error) {
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}
func (s *stubArchive) ListByKind(kind models.JobKind, _ int) ([]*models.JobRecord, error) {
	s.lastKind = kind
	return s.records, nil
}
func (s *stubArchive) DeleteOlderThan(time.Time) (int, error) { return 0, nil }
func (s *stubArchive) Count() (int, error)                    { return len(s.records), nil }
func (s *stubArchive) Close() error                           { return nil }

func TestHealthEndpoint(t *testing.T) {
	handler := NewAPIHandler(&stubStatus{state: interfaces.StateReady}, nil, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime_seconds")
	assert.Contains(t, body, "goroutines")
}

func TestVersionEndpoint(t *testing.T) {
	handler := NewAPIHandler(&stubStatus{}, nil, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	handler.VersionHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "version")
	assert.Contains(t, body, "build")
	assert.Contains(t, body, "commit")
}

func TestHistoryEndpoint(t *testing.T) {
	archive := &stubArchive{records: []*models.JobRecord{
		{ID: "job-2", Kind: "forecast", Status: "completed"},
		{ID: "job-1", Kind: "profile", Status: "failed"},
	}}
	handler := NewAPIHandler(&stubStatus{}, nil, archive, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/jobs/history?limit=1", nil)
	rec := httptest.NewRecorder()
	handler.HistoryHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestHistoryRejectsBadParams(t *testing.T) {
	handler := NewAPIHandler(&stubStatus{}, nil, &stubArchive{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/jobs/history?limit=bogus", nil)
	rec := httptest.NewRecorder()
	handler.HistoryHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/jobs/history?kind=martian", nil)
	rec = httptest.NewRecorder()
	handler.HistoryHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryKindFilter(t *testing.T) {
	archive := &stubArchive{records: []*models.JobRecord{{ID: "p-1", Kind: "profile", Status: "completed"}}}
	handler := NewAPIHandler(&stubStatus{}, nil, archive, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/jobs/history?kind=profile", nil)
	rec := httptest.NewRecorder()
	handler.HistoryHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.JobKindProfile, archive.lastKind)
}
