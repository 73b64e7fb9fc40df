package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxLeaderboard = 100

func (s *Server) mountScores(r chi.Router) {
	r.Get("/scores/me", s.handleMyScores)
	r.Get("/scores/leaderboard", s.handleLeaderboard)
}

// handleMyScores returns the caller's last and best times in seconds.
func (s *Server) handleMyScores(w http.ResponseWriter, r *http.Request) {
	owner := s.ownerID(w, r)
	sc, err := s.scores.Load(r.Context(), owner)
	if err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("load scores")
		writeError(w, http.StatusServiceUnavailable, "scores_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// handleLeaderboard returns the fastest completions (limit 1–100, default 20).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		limit = min(n, maxLeaderboard)
	}
	rows, err := s.scores.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Warn().Err(err).Msg("leaderboard")
		writeError(w, http.StatusServiceUnavailable, "scores_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
