package api

import (
	"net/http"

	"github.com/terra-clan/moodle-analytics/internal/analytics"
)

const (
	maxPerPage     = 100
	defaultTopN    = 5
	maxTopN        = 100
	defaultHistory = 50
)

// Category handlers

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.dashboard.Categories(r.Context())
	if err != nil {
		respondFailure(w, r, "listing categories", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      len(categories),
	})
}

// Course handlers

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := analytics.Filter{
		Query:           q.Get("search"),
		CategoryID:      analytics.ParseID(q.Get("category")),
		ShortNamePrefix: q.Get("shortname"),
	}
	page := queryInt(r, "page", 1, 0)
	perPage := queryInt(r, "per_page", analytics.DefaultPerPage, maxPerPage)

	result, err := s.dashboard.Courses(r.Context(), filter, page, perPage)
	if err != nil {
		respondFailure(w, r, "listing courses", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTopCourses(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultTopN, maxTopN)

	courses, err := s.dashboard.TopCourses(r.Context(), limit)
	if err != nil {
		respondFailure(w, r, "ranking courses", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"courses": courses,
		"limit":   limit,
	})
}
