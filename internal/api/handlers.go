package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/moodle-analytics/internal/analytics"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Message: message,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondFailure maps a dashboard error to a status and logs it
func respondFailure(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn(action+" timed out", "error", err, "path", r.URL.Path)
		respondError(w, http.StatusGatewayTimeout, "timeout", action+" timed out")
	case errors.Is(err, context.Canceled):
		slog.Debug(action+" cancelled", "path", r.URL.Path)
		respondError(w, http.StatusServiceUnavailable, "cancelled", "request cancelled")
	case errors.Is(err, analytics.ErrCourseListUnavailable), errors.Is(err, analytics.ErrSiteInfoUnavailable):
		slog.Error(action+" failed", "error", err, "path", r.URL.Path)
		respondError(w, http.StatusInternalServerError, "upstream_error", err.Error())
	default:
		slog.Error(action+" failed", "error", err, "path", r.URL.Path)
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def, max int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.registry.HealthCheckAll(r.Context())

	checks := make(map[string]string, len(results))
	var failed []string
	for name, err := range results {
		if err != nil {
			checks[name] = err.Error()
			failed = append(failed, name)
			continue
		}
		checks[name] = "ok"
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		slog.Warn("readiness check failed", "dependencies", failed)
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": checks,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}
