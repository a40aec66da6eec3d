package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-analytics/internal/application/engine"
	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	viewcache "github.com/alem-hub/study-analytics/internal/infrastructure/cache"
	"github.com/alem-hub/study-analytics/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/study-analytics/internal/interface/http/handlers"
	"github.com/alem-hub/study-analytics/pkg/logger"
	"github.com/alem-hub/study-analytics/pkg/timeutil"
)

var clock = timeutil.FixedClock{T: time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC)}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

type testEnv struct {
	handler http.Handler
	store   *memory.Store
}

func newTestEnv(t *testing.T, cfg Config, health handlers.HealthChecker) testEnv {
	t.Helper()

	store := memory.NewStore()
	eng, err := engine.New(engine.Dependencies{
		Store:  store,
		Cache:  viewcache.NewTTLCache(time.Minute, viewcache.WithClock(clock)),
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, engine.DefaultConfig())
	require.NoError(t, err)

	srv := NewServer(cfg, Dependencies{
		Analytics: eng,
		Health:    health,
		Logger:    quietLogger(),
	})
	return testEnv{handler: srv.Handler(), store: store}
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func decodeData(t *testing.T, resp JSONResponse, dst any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS ROUTES
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_StudyTimeThenAnalytics(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)

	rec, resp := do(t, env.handler, http.MethodPost, "/v1/users/u1/study-time", `{"seconds":1800}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))

	var today analytics.TodayProgress
	decodeData(t, resp, &today)
	assert.Equal(t, 1800, today.TotalTimeSpent)
	assert.Equal(t, 30, today.StudyTimeMinutes)

	rec, resp = do(t, env.handler, http.MethodGet, "/v1/users/u1/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rt analytics.RealTimeAnalytics
	decodeData(t, resp, &rt)
	assert.Equal(t, "u1", rt.UserID)
	assert.Equal(t, 1800, rt.Today.TotalTimeSpent)
	assert.Equal(t, 1, rt.CurrentStreak)
	assert.False(t, rt.FromCache)

	_, resp = do(t, env.handler, http.MethodGet, "/v1/users/u1/analytics", "")
	decodeData(t, resp, &rt)
	assert.True(t, rt.FromCache)

	_, resp = do(t, env.handler, http.MethodPost, "/v1/users/u1/analytics/refresh", "")
	decodeData(t, resp, &rt)
	assert.False(t, rt.FromCache)
}

func TestServer_TrackActivityAccepted(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)

	rec, resp := do(t, env.handler, http.MethodPost, "/v1/users/u1/activities",
		`{"type":"question_answered","correct":true,"area":" fractions "}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]bool
	decodeData(t, resp, &body)
	assert.True(t, body["accepted"])

	row, err := env.store.GetDay(context.Background(), "u1", "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, 1, row.QuestionsCorrect)
	assert.Equal(t, []string{"fractions"}, row.StrongAreas)
}

func TestServer_ResetReturnsFreshAnalytics(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)

	do(t, env.handler, http.MethodPost, "/v1/users/u1/study-time", `{"seconds":600}`)
	do(t, env.handler, http.MethodGet, "/v1/users/u1/analytics", "")

	rec, resp := do(t, env.handler, http.MethodPost, "/v1/users/u1/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rt analytics.RealTimeAnalytics
	decodeData(t, resp, &rt)
	assert.Equal(t, 0, rt.Today.TotalTimeSpent)
	assert.False(t, rt.FromCache)
}

func TestServer_ProgressAndInsights(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)
	do(t, env.handler, http.MethodPost, "/v1/users/u1/study-time", `{"seconds":120}`)

	for _, period := range []string{"today", "week", "month"} {
		rec, _ := do(t, env.handler, http.MethodGet, "/v1/users/u1/progress/"+period, "")
		assert.Equal(t, http.StatusOK, rec.Code, period)
	}

	_, resp := do(t, env.handler, http.MethodGet, "/v1/users/u1/progress/month", "")
	var month analytics.MonthlyView
	decodeData(t, resp, &month)
	assert.Equal(t, "October 2026", month.Month)

	rec, resp := do(t, env.handler, http.MethodGet, "/v1/users/u1/progress/year", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_period", resp.Error.Code)

	rec, resp = do(t, env.handler, http.MethodGet, "/v1/users/u1/insights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var insights analytics.StudyInsights
	decodeData(t, resp, &insights)
	assert.Equal(t, analytics.NotEnoughData, insights.PreferredStudyTime)
}

func TestServer_MeResolvesHeader(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)

	rec, resp := do(t, env.handler, http.MethodGet, "/v1/users/me/analytics", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_user_id", resp.Error.Code)

	rec, resp = do(t, env.handler, http.MethodGet, "/v1/users/me/analytics", "", "X-User-ID", "u7")
	require.Equal(t, http.StatusOK, rec.Code)
	var rt analytics.RealTimeAnalytics
	decodeData(t, resp, &rt)
	assert.Equal(t, "u7", rt.UserID)
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_RequestValidation(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)

	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"zero seconds", "/v1/users/u1/study-time", `{"seconds":0}`, "validation_failed"},
		{"negative seconds", "/v1/users/u1/study-time", `{"seconds":-5}`, "validation_failed"},
		{"more than a day", "/v1/users/u1/study-time", `{"seconds":90000}`, "validation_failed"},
		{"not json", "/v1/users/u1/study-time", `seconds=5`, "invalid_body"},
		{"unknown field", "/v1/users/u1/study-time", `{"seconds":5,"minutes":1}`, "invalid_body"},
		{"unknown activity", "/v1/users/u1/activities", `{"type":"teleported"}`, "validation_failed"},
		{"missing activity", "/v1/users/u1/activities", `{}`, "validation_failed"},
		{"negative session", "/v1/users/u1/activities", `{"type":"session_started","session_seconds":-1}`, "validation_failed"},
		{"long user id", "/v1/users/" + strings.Repeat("x", 129) + "/study-time", `{"seconds":5}`, "invalid_user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, env.handler, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	env := newTestEnv(t, cfg, nil)

	rec, _ := do(t, env.handler, http.MethodPost, "/v1/users/u1/study-time", `{"seconds":1200,"pad":"xxxxxxxxxxxx"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type failingService struct {
	AnalyticsService
	err error
}

func (f failingService) GetRealTimeAnalytics(context.Context, string) (*analytics.RealTimeAnalytics, error) {
	return nil, f.err
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", shared.ErrEmptyUserID, http.StatusBadRequest, "invalid_request"},
		{"store", shared.StoreError("GetRange", errors.New("connection refused")), http.StatusServiceUnavailable, "store_unavailable"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(DefaultConfig(), Dependencies{
				Analytics: failingService{err: tt.err},
				Logger:    quietLogger(),
			})
			rec, resp := do(t, srv.Handler(), http.MethodGet, "/v1/users/u1/analytics", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

type panickingService struct {
	AnalyticsService
}

func (panickingService) GetRealTimeAnalytics(context.Context, string) (*analytics.RealTimeAnalytics, error) {
	panic("nil map")
}

func TestServer_RecoversPanics(t *testing.T) {
	srv := NewServer(DefaultConfig(), Dependencies{Analytics: panickingService{}, Logger: quietLogger()})

	rec, resp := do(t, srv.Handler(), http.MethodGet, "/v1/users/u1/analytics", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_server_error", resp.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS & MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestServer_HealthEndpoints(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("store", handlers.NewPingCheck(pinger{}))
	checker.AddOptionalCheck("redis", handlers.NewPingCheck(pinger{err: errors.New("dial tcp: refused")}))
	env := newTestEnv(t, DefaultConfig(), checker)

	rec, _ := do(t, env.handler, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, env.handler, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "an optional failure keeps the service ready")
	var status handlers.HealthStatus
	decodeData(t, resp, &status)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Degraded: redis", status.Message)

	checker.AddCheck("store", handlers.NewPingCheck(pinger{err: errors.New("pool closed")}))
	rec, _ = do(t, env.handler, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	env := newTestEnv(t, cfg, nil)

	for i := 0; i < 2; i++ {
		rec, _ := do(t, env.handler, http.MethodGet, "/v1/users/u1/progress/today", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := do(t, env.handler, http.MethodGet, "/v1/users/u1/progress/today", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", resp.Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec, _ = do(t, env.handler, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health endpoints are not rate limited")
}

func TestServer_CORSAndNotFound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	env := newTestEnv(t, cfg, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/users/u1/analytics", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, resp := do(t, env.handler, http.MethodGet, "/v2/anything", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	assert.True(t, rl.Allow("a", start))
	assert.True(t, rl.Allow("a", start.Add(time.Second)))
	assert.False(t, rl.Allow("a", start.Add(2*time.Second)))
	assert.True(t, rl.Allow("b", start.Add(2*time.Second)))
	assert.True(t, rl.Allow("a", start.Add(61*time.Second)))
}

