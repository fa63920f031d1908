package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, role models.UserRole, expires time.Time) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: "u1",
		Role:   role,
		Email:  "admin@school.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "portal",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(NewTokenValidator(testSecret, "portal")))
	if len(roles) > 0 {
		router.Use(RequireRoles(roles...))
	}
	router.GET("/me", func(c *gin.Context) {
		claims, _ := CurrentUser(c)
		c.String(http.StatusOK, string(claims.Role))
	})
	return router
}

func doGet(router http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAcceptsValidToken(t *testing.T) {
	token := signToken(t, testSecret, models.RoleAdmin, time.Now().Add(time.Hour))
	w := doGet(protectedRouter(), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ADMIN", w.Body.String())
}

func TestJWTRejectsBadTokens(t *testing.T) {
	router := protectedRouter()
	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"bad secret":   "Bearer " + signToken(t, "other", models.RoleAdmin, time.Now().Add(time.Hour)),
		"expired":      "Bearer " + signToken(t, testSecret, models.RoleAdmin, time.Now().Add(-time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := doGet(router, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRolesForbidsOtherRoles(t *testing.T) {
	router := protectedRouter(models.RoleAdmin, models.RoleSuperAdmin)

	w := doGet(router, "Bearer "+signToken(t, testSecret, models.RoleTeacher, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doGet(router, "Bearer "+signToken(t, testSecret, models.RoleSuperAdmin, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(1, 2, nil)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))

	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0, nil)
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow("10.0.0.1"))
	}
}

func TestRateLimiterMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewRateLimiter(1, 1, nil).Middleware())
	router.POST("/generate", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate", nil))
		return w
	}
	assert.Equal(t, http.StatusOK, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body["error"]["code"])
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/assignments", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/assignments", nil))

	assert.EqualValues(t, 1, metrics.Snapshot().RequestsTotal)
}

func TestResponseMetaStampsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/", func(c *gin.Context) {
		SetMeta(c, "cache_hit", true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, processingTimeMS)
}
