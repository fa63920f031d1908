package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

func testRouter() http.Handler {
	metrics := service.NewMetricsService()
	cfg := &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"}
	return NewRouter(Deps{
		Config:      cfg,
		Logger:      zap.NewNop(),
		Metrics:     metrics,
		Tokens:      middleware.NewTokenValidator("secret", ""),
		SolveLimits: middleware.NewRateLimiter(0, 0, nil),
	}, Handlers{
		Snapshot:    handler.NewSnapshotHandler(nil),
		Generator:   handler.NewScheduleGeneratorHandler(nil),
		Runs:        handler.NewSolveRunHandler(nil),
		Assignments: handler.NewAssignmentHandler(nil),
		Export:      handler.NewExportHandler(nil),
		Metrics:     handler.NewMetricsHandler(metrics, nil),
	})
}

func bearer(t *testing.T, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{UserID: "u1", Role: role, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(router http.Handler, method, path, auth string) int {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestPublicEndpoints(t *testing.T) {
	router := testRouter()
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ready", ""))
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics", ""))
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/docs/index.html", ""))
}

func TestAPIRequiresToken(t *testing.T) {
	router := testRouter()
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/assignments", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/api/v1/timetable/generate", "Bearer nope"))
}

func TestMutationsRequireAdmin(t *testing.T) {
	router := testRouter()
	teacher := bearer(t, models.RoleTeacher)

	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPut, "/api/v1/timetable/snapshot", teacher))
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/v1/timetable/generate", teacher))
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/v1/timetable/apply", teacher))
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodDelete, "/api/v1/assignments/a1", teacher))
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/api/v1/metrics/stats", teacher))

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/metrics/stats", bearer(t, models.RoleAdmin)))
}
