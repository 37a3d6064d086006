package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nanoqc/nanoqc/internal/config"
	"github.com/nanoqc/nanoqc/internal/jobs"
	"github.com/nanoqc/nanoqc/internal/report"
	"github.com/nanoqc/nanoqc/internal/seqsum"
	"github.com/nanoqc/nanoqc/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	cfg := config.Defaults()
	cfg.Source = "/data/*.txt"
	return New(cfg, db, nil, opts...), db
}

func testReport(id string) *report.Report {
	r := &report.Report{
		ID:        id,
		Tool:      report.Tool{Name: "nanoqc", Version: "test"},
		CreatedAt: time.Now().UTC(),
		Source:    "summary.txt",
		RunType:   seqsum.RunType1D,
	}
	r.AllReads.Basecall.Reads = 10
	r.AllReads.Basecall.Bases = 5000
	return r
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestReady(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLatestReport(t *testing.T) {
	s, db := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/reports/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, db.Save(context.Background(), testReport("r-1")))

	rec = doRequest(t, s, http.MethodGet, "/api/v1/reports/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "r-1", rep.ID)
}

func TestReportByID(t *testing.T) {
	s, db := testServer(t)
	require.NoError(t, db.Save(context.Background(), testReport("r-42")))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/reports/r-42")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/reports/r-missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	s, db := testServer(t)
	ctx := context.Background()
	for _, id := range []string{"r-1", "r-2", "r-3"} {
		r := testReport(id)
		r.CreatedAt = r.CreatedAt.Add(time.Duration(len(id)) * time.Minute)
		require.NoError(t, db.Save(ctx, r))
	}

	rec := doRequest(t, s, http.MethodGet, "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []store.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 3)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/history?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	entries = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/history?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEmptyIsArray(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRefresh(t *testing.T) {
	s, _ := testServer(t, WithRefreshFunc(func(context.Context) (*report.Report, error) {
		return testReport("r-fresh"), nil
	}))

	rec := doRequest(t, s, http.MethodPost, "/api/v1/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var st jobs.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "r-fresh", st.ReportID)
	assert.Equal(t, 10, st.Reads)
	assert.Equal(t, "r-fresh", s.Status().ReportID)
}

func TestRefreshFailure(t *testing.T) {
	s, _ := testServer(t, WithRefreshFunc(func(context.Context) (*report.Report, error) {
		return nil, assert.AnError
	}))

	rec := doRequest(t, s, http.MethodPost, "/api/v1/refresh")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, s.Status().Error)
}

func TestRefreshConflict(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s, _ := testServer(t, WithRefreshFunc(func(context.Context) (*report.Report, error) {
		close(entered)
		<-release
		return testReport("r-slow"), nil
	}))
	router := s.Router()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}()

	<-entered
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	wg.Wait()
}

func TestRefreshUnconfigured(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
