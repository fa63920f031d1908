package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceObserveSolve(t *testing.T) {
	m := NewMetricsService()
	m.ObserveSolve("SOLVED", 0, 40*time.Millisecond)
	m.ObserveSolve("PARTIAL_SOLVED", 3, 90*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.solveTotal.WithLabelValues("SOLVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solveTotal.WithLabelValues("PARTIAL_SOLVED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.solveUnassigned))
}

func TestMetricsServiceRunsInFlight(t *testing.T) {
	m := NewMetricsService()
	m.RunStarted()
	m.RunStarted()
	m.RunFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsInFlight))
}

func TestMetricsServiceHandlerExposesSolveMetrics(t *testing.T) {
	m := NewMetricsService()
	m.ObserveSolve("SOLVED", 0, time.Second)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/timetable/generate", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "timetable_solve_duration_seconds")
	assert.Contains(t, body, `timetable_solve_total{status="SOLVED"} 1`)
	assert.Contains(t, body, "http_requests_total")
	assert.EqualValues(t, 1, m.Snapshot().RequestsTotal)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveSolve("SOLVED", 0, time.Second)
	m.RunStarted()
	m.RunFinished()
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
