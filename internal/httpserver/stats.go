package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/stats"
)

// handleUserStats serves the caller's own stats; "me" aliases the caller.
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	userID := chi.URLParam(r, "userID")
	if userID == "me" {
		userID = me.ID
	}
	if userID != me.ID {
		writeError(w, r, core.ErrForbidden)
		return
	}
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.stats.UserStats(r.Context(), userID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.stats.GlobalStats(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric, err := stats.ParseMetric(q.Get("metric"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	period, err := stats.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := stats.DefaultLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > stats.MaxLimit {
			writeError(w, r, core.NewValidationError(core.ErrValidation, "limit", "must be between 1 and 100"))
			return
		}
	}
	entries, err := s.stats.Leaderboard(r.Context(), metric, period, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metric":  metric,
		"period":  period,
		"entries": entries,
	})
}
