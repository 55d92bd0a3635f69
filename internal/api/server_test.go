package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/job"
	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/service"
	"github.com/address-discovery/internal/types"
	"github.com/address-discovery/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock services for testing

type mockIngestion struct {
	scanFunc  func(ctx context.Context, url string) (*service.ScanResult, error)
	addresses []*models.Address
	snapshots []*models.Snapshot
	stats     *service.PipelineStats
	err       error
	lastLimit int
}

func (m *mockIngestion) ScanItem(ctx context.Context, itemURL string) (*service.ScanResult, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, itemURL)
	}
	return &service.ScanResult{Channel: "Bitcoin", PostID: "abc123", SnapshotCreated: true, ExtractionsFound: 2}, nil
}

func (m *mockIngestion) ListConfirmedAddresses(_ context.Context, limit int) ([]*models.Address, error) {
	m.lastLimit = limit
	return m.addresses, m.err
}

func (m *mockIngestion) ListRecentSnapshots(_ context.Context, limit int) ([]*models.Snapshot, error) {
	m.lastLimit = limit
	return m.snapshots, m.err
}

func (m *mockIngestion) Stats(context.Context) (*service.PipelineStats, error) {
	return m.stats, m.err
}

type mockDispatcher struct {
	mu     sync.Mutex
	queued bool
	err    error
	inputs []*service.CycleInput
	jobs   map[string]*job.Job
}

func (m *mockDispatcher) Dispatch(_ context.Context, in *service.CycleInput) (*job.DispatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	if m.queued {
		return &job.DispatchResult{Queued: true, JobID: "job-1"}, nil
	}
	return &job.DispatchResult{Result: &service.CycleResult{PostsSaved: 5, ExtractionsFound: 3}}, nil
}

func (m *mockDispatcher) JobStatus(_ context.Context, id string) (*job.Job, error) {
	if !m.queued {
		return nil, job.ErrQueueDisabled
	}
	j, ok := m.jobs[id]
	if !ok {
		return nil, job.ErrJobNotFound
	}
	return j, nil
}

type mockScheduler struct {
	running bool
	runs    int
	runErr  error
}

func (m *mockScheduler) Start(context.Context) { m.running = true }

func (m *mockScheduler) Stop(context.Context) error {
	m.running = false
	return nil
}

func (m *mockScheduler) GetStatus() *worker.SchedulerStatus {
	st := &worker.SchedulerStatus{Running: m.running, Jobs: []string{}, NextRun: "Not scheduled", Channels: []string{"Bitcoin"}}
	if m.running {
		st.Jobs = []string{worker.JobName}
		st.NextRun = "Every 5m0s"
	}
	return st
}

func (m *mockScheduler) RunAll(ctx context.Context) map[string]*worker.ChannelOutcome {
	m.runs++
	m.runErr = ctx.Err()
	return map[string]*worker.ChannelOutcome{
		"Bitcoin": {Result: &service.CycleResult{PostsSaved: 1}},
		"Monero":  {Error: "upstream 503"},
	}
}

type testServer struct {
	*Server
	ingestion  *mockIngestion
	dispatcher *mockDispatcher
	scheduler  *mockScheduler
}

// Helper function to create test server
func createTestServer() *testServer {
	config := &ServerConfig{
		Host:         "localhost",
		Port:         "8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ts := &testServer{
		ingestion:  &mockIngestion{},
		dispatcher: &mockDispatcher{jobs: map[string]*job.Job{}},
		scheduler:  &mockScheduler{},
	}
	ts.Server = NewServer(config, ts.ingestion, ts.dispatcher, ts.scheduler)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error.Code
}

func TestHealthEndpoint(t *testing.T) {
	ts := createTestServer()
	ts.AddHealthCheck("postgres", func(context.Context) error { return nil })

	w := ts.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, map[string]interface{}{"postgres": "ok"}, resp["dependencies"])
}

func TestHealthEndpoint_Degraded(t *testing.T) {
	ts := createTestServer()
	ts.AddHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	w := ts.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := createTestServer()
	ts.do(t, "GET", "/health", nil)

	w := ts.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "discovery_api_requests_total")
}

func TestScrapeReddit_Sync(t *testing.T) {
	ts := createTestServer()

	w := ts.do(t, "POST", "/workers/scrape/reddit", map[string]interface{}{"subreddit": "Bitcoin", "limit": 10})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, false, resp["queued"])
	result := resp["result"].(map[string]interface{})
	assert.EqualValues(t, 5, result["posts_saved"])

	require.Len(t, ts.dispatcher.inputs, 1)
	assert.Equal(t, "Bitcoin", ts.dispatcher.inputs[0].Channel)
	assert.Equal(t, 10, ts.dispatcher.inputs[0].PageSize)
}

func TestScrapeReddit_Queued(t *testing.T) {
	ts := createTestServer()
	ts.dispatcher.queued = true

	w := ts.do(t, "POST", "/workers/scrape/reddit", map[string]interface{}{"subreddit": "Monero", "mode": "hot"})
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decode(t, w)
	assert.Equal(t, true, resp["queued"])
	assert.Equal(t, "job-1", resp["jobId"])
	assert.Equal(t, "hot", ts.dispatcher.inputs[0].Mode)
}

func TestScrapeReddit_Validation(t *testing.T) {
	ts := createTestServer()

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing subreddit", map[string]interface{}{"mode": "new"}},
		{"limit too large", map[string]interface{}{"subreddit": "Bitcoin", "limit": 500}},
		{"malformed json", "{not json"},
		{"unknown field", map[string]interface{}{"subreddit": "Bitcoin", "pages": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, "POST", "/workers/scrape/reddit", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, ErrCodeInvalidInput, errorCode(t, w))
		})
	}
	assert.Empty(t, ts.dispatcher.inputs)
}

func TestScrapeReddit_SyncFailure(t *testing.T) {
	ts := createTestServer()
	ts.dispatcher.err = apperrors.NewProviderStatusError("reddit", "u", 503)

	w := ts.do(t, "POST", "/workers/scrape/reddit", map[string]interface{}{"subreddit": "Bitcoin"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ErrCodeProcessingFailed, resp.Error.Code)
	assert.Equal(t, "processing failed", resp.Error.Message)
	assert.Contains(t, resp.Error.Details["details"], "HTTP 503")
}

func TestGetJob(t *testing.T) {
	ts := createTestServer()

	// sync mode has no jobs
	w := ts.do(t, "GET", "/workers/jobs/job-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.dispatcher.queued = true
	ts.dispatcher.jobs["job-1"] = &job.Job{ID: "job-1", Status: types.JobStatusCompleted, Result: &service.CycleResult{PostsSaved: 2}}

	w = ts.do(t, "GET", "/workers/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "completed", resp["status"])

	w = ts.do(t, "GET", "/workers/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp404 ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp404))
	assert.Equal(t, "NOT_FOUND", resp404.Error.Code)
	assert.Equal(t, "job not found: missing", resp404.Error.Message)
	assert.Equal(t, "missing", resp404.Error.Details["id"])
}

func TestSchedulerLifecycleEndpoints(t *testing.T) {
	ts := createTestServer()

	w := ts.do(t, "GET", "/api/scheduler/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["running"])
	assert.Equal(t, "Not scheduled", resp["nextRun"])

	w = ts.do(t, "POST", "/api/scheduler/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.Equal(t, "Auto-scheduler started", resp["message"])
	status := resp["status"].(map[string]interface{})
	assert.Equal(t, true, status["running"])
	assert.Equal(t, []interface{}{"reddit-scraper"}, status["jobs"])
	assert.Equal(t, "Every 5m0s", status["nextRun"])

	w = ts.do(t, "POST", "/api/scheduler/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ts.scheduler.running)
}

func TestSchedulerRunNow(t *testing.T) {
	ts := createTestServer()

	w := ts.do(t, "POST", "/api/scheduler/run-now", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Manual scrape completed", resp["message"])

	results := resp["results"].(map[string]interface{})
	assert.Contains(t, results, "Bitcoin")
	assert.Equal(t, "upstream 503", results["Monero"].(map[string]interface{})["error"])
	assert.Equal(t, 1, ts.scheduler.runs)
}

func TestSchedulerRunNow_IgnoresClientDisconnect(t *testing.T) {
	ts := createTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("POST", "/api/scheduler/run-now", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.scheduler.runs)
	assert.NoError(t, ts.scheduler.runErr)
}

func TestListAddresses(t *testing.T) {
	ts := createTestServer()
	ts.ingestion.addresses = []*models.Address{
		{CanonicalAddress: "0xabc", Coin: types.CoinEthereum, ValidationStatus: types.StatusValid, SourceCount: 3},
	}

	w := ts.do(t, "GET", "/api/scheduler/addresses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, ts.ingestion.lastLimit)

	var out []map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "0xabc", out[0]["canonical_address"])

	ts.do(t, "GET", "/api/scheduler/addresses?limit=10", nil)
	assert.Equal(t, 10, ts.ingestion.lastLimit)

	ts.do(t, "GET", "/api/scheduler/addresses?limit=1000", nil)
	assert.Equal(t, 100, ts.ingestion.lastLimit)

	w = ts.do(t, "GET", "/api/scheduler/addresses?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAddresses_Empty(t *testing.T) {
	ts := createTestServer()

	w := ts.do(t, "GET", "/api/scheduler/addresses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestScanURL(t *testing.T) {
	ts := createTestServer()

	w := ts.do(t, "POST", "/api/scheduler/scan-url", map[string]string{"url": "https://reddit.com/r/Bitcoin/comments/abc123/x/"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "URL scan completed", resp["message"])
	assert.Equal(t, "https://reddit.com/r/Bitcoin/comments/abc123/x/", resp["url"])
}

func TestScanURL_Errors(t *testing.T) {
	ts := createTestServer()

	w := ts.do(t, "POST", "/api/scheduler/scan-url", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.ingestion.scanFunc = func(context.Context, string) (*service.ScanResult, error) {
		return nil, apperrors.NewInvalidParameterError("url", "only reddit URLs are supported")
	}
	w = ts.do(t, "POST", "/api/scheduler/scan-url", map[string]string{"url": "https://example.com/x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, w))

	ts.ingestion.scanFunc = func(context.Context, string) (*service.ScanResult, error) {
		return nil, apperrors.NewProviderError("reddit", service.ErrNoItem)
	}
	w = ts.do(t, "POST", "/api/scheduler/scan-url", map[string]string{"url": "https://reddit.com/r/a/comments/b/"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestListSnapshots(t *testing.T) {
	ts := createTestServer()
	fetched := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ts.ingestion.snapshots = []*models.Snapshot{
		{ID: "s1", PostID: "p1", Subreddit: "Bitcoin", URL: "https://reddit.com/r/Bitcoin/comments/p1/", FetchedAt: fetched, Raw: json.RawMessage(`{"big":"payload"}`)},
	}

	w := ts.do(t, "GET", "/api/scheduler/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, ts.ingestion.lastLimit)

	var out []map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0]["post_id"])
	assert.NotContains(t, out[0], "raw")
}

func TestStats(t *testing.T) {
	ts := createTestServer()
	ts.ingestion.stats = &service.PipelineStats{Snapshots: 4, Extractions: 7, ValidAddresses: 2}

	w := ts.do(t, "GET", "/api/scheduler/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.EqualValues(t, 4, resp["totalSnapshots"])
	assert.EqualValues(t, 7, resp["totalExtractions"])
	assert.EqualValues(t, 2, resp["totalAddresses"])
	assert.Nil(t, resp["lastScrape"])

	ts.ingestion.err = errors.New("db down")
	w = ts.do(t, "GET", "/api/scheduler/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// TestCORSHeaders tests that CORS headers are properly set
func TestCORSHeaders(t *testing.T) {
	ts := createTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompression(t *testing.T) {
	ts := createTestServer()

	req := httptest.NewRequest("GET", "/api/scheduler/status", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var st worker.SchedulerStatus
	require.NoError(t, json.NewDecoder(gz).Decode(&st))
	assert.Equal(t, []string{"Bitcoin"}, st.Channels)
}

func TestRecoveryMiddleware(t *testing.T) {
	ts := createTestServer()
	ts.ingestion.scanFunc = func(context.Context, string) (*service.ScanResult, error) {
		panic("boom")
	}

	w := ts.do(t, "POST", "/api/scheduler/scan-url", map[string]string{"url": "https://reddit.com/r/a/comments/b/"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

func TestRateLimitMiddleware(t *testing.T) {
	ts := createTestServer()
	ts.config.RequestsPerSecond = 1
	ts.config.Burst = 2
	ts.Server = NewServer(ts.config, ts.ingestion, ts.dispatcher, ts.scheduler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/scheduler/status", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		ts.Handler().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// a different client has its own bucket
	req := httptest.NewRequest("GET", "/api/scheduler/status", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestConcurrentRequests checks the handlers are safe under parallel load
func TestConcurrentRequests(t *testing.T) {
	ts := createTestServer()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			ts.Handler().ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
}

func BenchmarkHealthEndpoint(b *testing.B) {
	ts := createTestServer()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		ts.Handler().ServeHTTP(w, req)
	}
}
