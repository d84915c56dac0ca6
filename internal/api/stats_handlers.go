package api

import (
	"errors"
	"net/http"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/storage"
)

// Statistics handlers

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	overview, err := s.dashboard.Overview(r.Context())
	if err != nil {
		respondFailure(w, r, "computing statistics", err)
		return
	}

	respondJSON(w, http.StatusOK, overview)
}

func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if s.reporting == nil {
		respondError(w, http.StatusServiceUnavailable, "reporting_disabled", storage.ErrReportingDisabled.Error())
		return
	}

	stats, err := s.reporting.Statistics(r.Context())
	if err != nil {
		var cerr *storage.ConnError
		if errors.As(err, &cerr) {
			respondError(w, http.StatusServiceUnavailable, string(cerr.Cause), cerr.Cause.Hint())
			return
		}
		respondFailure(w, r, "reading database statistics", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultHistory, 0)

	if s.history == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"snapshots": []*models.Snapshot{},
			"enabled":   false,
		})
		return
	}

	snapshots, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		respondFailure(w, r, "reading statistics history", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"enabled":   true,
	})
}
