package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/study-analytics/internal/application/engine"
	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
	"github.com/alem-hub/study-analytics/pkg/logger"
)

// AnalyticsService is the engine surface the API serves.
type AnalyticsService interface {
	GetRealTimeAnalytics(ctx context.Context, userID string) (*analytics.RealTimeAnalytics, error)
	ForceRefreshAnalytics(ctx context.Context, userID string) (*analytics.RealTimeAnalytics, error)
	ResetAndGetFreshAnalytics(ctx context.Context, userID string) (*analytics.RealTimeAnalytics, error)
	AddStudyTime(ctx context.Context, userID string, seconds int) (*analytics.DailyAggregate, error)
	TrackPlatformActivity(ctx context.Context, userID string, activity analytics.ActivityType, meta analytics.ActivityMeta) bool
	GetStudyInsights(ctx context.Context, userID string) (*analytics.StudyInsights, error)
	GetTodayProgress(ctx context.Context, userID string) (analytics.TodayProgress, error)
	GetWeeklyProgress(ctx context.Context, userID string) (analytics.WeeklyView, error)
	GetMonthlyProgress(ctx context.Context, userID string) (analytics.MonthlyView, error)
}

var _ AnalyticsService = (*engine.Engine)(nil)

// meUserID is the path placeholder resolved from the X-User-ID header.
const meUserID = "me"

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

type userPath struct {
	UserID string `validate:"required,max=128,printascii"`
}

// StudyTimeRequest is the body of POST /study-time.
type StudyTimeRequest struct {
	Seconds int `json:"seconds" validate:"required,gt=0,lte=86400"`
}

// ActivityRequest is the body of POST /activities.
type ActivityRequest struct {
	Type           string `json:"type" validate:"required,activity_type"`
	Correct        bool   `json:"correct"`
	SessionSeconds int    `json:"session_seconds" validate:"gte=0,lte=86400"`
	Area           string `json:"area" validate:"omitempty,max=100"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("activity_type", func(fl validator.FieldLevel) bool {
		return analytics.ActivityType(fl.Field().String()).Valid()
	})
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports liveness with the full check breakdown. It answers
// 200 as long as the process can serve requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Health.Check(r.Context()))
}

// handleReady answers 503 while a required dependency is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	rt, err := s.deps.Analytics.GetRealTimeAnalytics(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, "get analytics", userID, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rt)
}

func (s *Server) handleRefreshAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	rt, err := s.deps.Analytics.ForceRefreshAnalytics(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, "refresh analytics", userID, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rt)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	rt, err := s.deps.Analytics.ResetAndGetFreshAnalytics(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, "reset daily progress", userID, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rt)
}

func (s *Server) handleAddStudyTime(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req StudyTimeRequest
	if !s.decode(w, r, &req) {
		return
	}

	row, err := s.deps.Analytics.AddStudyTime(r.Context(), userID, req.Seconds)
	if err != nil {
		s.writeServiceError(w, r, "add study time", userID, err)
		return
	}
	writeJSON(w, r, http.StatusOK, analytics.NewTodayProgress(*row))
}

func (s *Server) handleTrackActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req ActivityRequest
	if !s.decode(w, r, &req) {
		return
	}

	// Applying the activity must not depend on the client staying connected.
	ctx := engine.WithCorrelationID(context.WithoutCancel(r.Context()), middleware.GetReqID(r.Context()))
	accepted := s.deps.Analytics.TrackPlatformActivity(ctx, userID, analytics.ActivityType(req.Type), analytics.ActivityMeta{
		Correct:        req.Correct,
		SessionSeconds: req.SessionSeconds,
		Area:           strings.TrimSpace(req.Area),
	})
	writeJSON(w, r, http.StatusAccepted, map[string]bool{"accepted": accepted})
}

func (s *Server) handleGetInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	insights, err := s.deps.Analytics.GetStudyInsights(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, "get insights", userID, err)
		return
	}
	writeJSON(w, r, http.StatusOK, insights)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var (
		data any
		err  error
	)
	switch period := chi.URLParam(r, "period"); period {
	case "today":
		data, err = s.deps.Analytics.GetTodayProgress(r.Context(), userID)
	case "week":
		data, err = s.deps.Analytics.GetWeeklyProgress(r.Context(), userID)
	case "month":
		data, err = s.deps.Analytics.GetMonthlyProgress(r.Context(), userID)
	default:
		writeJSONError(w, r, http.StatusNotFound, "unknown_period", "Period must be one of today, week, month")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, "get progress", userID, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// userID resolves the {userID} path segment. "me" reads the X-User-ID
// header set by the gateway.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "userID"))
	if id == meUserID {
		id = strings.TrimSpace(r.Header.Get("X-User-ID"))
		if id == "" {
			writeJSONError(w, r, http.StatusUnauthorized, "missing_user_id", "X-User-ID header is required")
			return "", false
		}
	}

	if err := s.validate.Struct(userPath{UserID: id}); err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_user_id", "Invalid user ID", validationDetails(err))
		return "", false
	}
	return id, true
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", err.Error())
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "validation_failed", "Request validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

// writeServiceError maps engine errors onto status codes:
// validation 400, store 503, anything else 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op, userID string, err error) {
	log := logger.FromContext(r.Context())

	switch {
	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", "Invalid request", err.Error())
	case shared.IsStore(err):
		log.Error("store unavailable",
			logger.Operation(op),
			logger.UserID(userID),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusServiceUnavailable, "store_unavailable", "Analytics storage is temporarily unavailable")
	default:
		log.Error("request failed",
			logger.Operation(op),
			logger.UserID(userID),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, resp JSONResponse) {
	resp.Meta = &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"}
	resp.RequestID = middleware.GetReqID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeResponse(w, r, status, JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSONErrorWithDetails(w, r, status, code, message, "")
}

func writeJSONErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	writeResponse(w, r, status, JSONResponse{
		Error: &APIError{Code: code, Message: message, Details: details},
	})
}
