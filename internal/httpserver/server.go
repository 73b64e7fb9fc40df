// internal/httpserver/server.go
//
// HTTP server wiring for the shape-matching backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): /game/* including the SSE stream.
//   - Score endpoints (optional auth): /scores/me, /scores/leaderboard.
//   - Auth endpoints: /auth/*.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every request is played by an owner: the signed-in user, or else an
//     anonymous id kept in a cookie.
//   - The event stream is mounted outside the request timeout.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/shapematch/internal/config"
	"github.com/robalobadob/shapematch/internal/game"
	"github.com/robalobadob/shapematch/internal/scores"
	"github.com/robalobadob/shapematch/internal/store"
)

// Backend is the score store plus the account directory. scores.SQL and
// scores.Memory both satisfy it.
type Backend interface {
	scores.Store
	scores.Accounts
}

// Server bundles router, live tables and the score backend.
type Server struct {
	r      *chi.Mux
	cfg    config.Config
	tables store.Store
	scores Backend
	game   game.Config

	openMu sync.Mutex // serializes table creation per process
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, tables store.Store, sc Backend) *Server {
	s := &Server{
		r:      chi.NewRouter(),
		cfg:    cfg,
		tables: tables,
		scores: sc,
		game:   game.DefaultConfig(),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS
	s.r.Use(s.withOptionalAuth())

	// Long-lived stream; no handler timeout.
	s.r.Get("/game/stream", s.handleStream)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service": "shapematch",
				"endpoints": []string{
					"/health", "POST /game/button", "POST /game/drag", "POST /game/drop",
					"/game/state", "/game/stream", "/scores/*", "/auth/*",
				},
			})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tables": s.tables.Len()})
		})

		s.mountGame(r)
		s.mountScores(r)
		s.mountAuth(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// WithGameConfig overrides the session timings (tests).
func (s *Server) WithGameConfig(c game.Config) *Server {
	s.game = c
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.r }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
