// internal/httpserver/routes_game.go
//
// HTTP routes for playing. Each owner has one live table:
//   - POST /game/button   → the single Start/Stop/Restart control
//   - POST /game/start | /game/stop | /game/restart → explicit transitions
//   - POST /game/drag     → intermediate drag position {shape,x,y}
//   - POST /game/drop     → drop {shape,x,y}; answers snap or return
//   - GET  /game/state    → full snapshot
//   - GET  /game/stream   → text/event-stream of render events
//
// Wrong-phase requests answer 409; unknown shape names 400.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/shapematch/internal/clock"
	"github.com/robalobadob/shapematch/internal/game"
	"github.com/robalobadob/shapematch/internal/layout"
	"github.com/robalobadob/shapematch/internal/shapes"
	"github.com/robalobadob/shapematch/internal/store"
	"github.com/robalobadob/shapematch/internal/table"
)

// mountGame registers the /game routes (the stream is mounted in New).
func (s *Server) mountGame(r chi.Router) {
	r.Route("/game", func(r chi.Router) {
		r.Post("/button", s.transition((*game.Session).Click))
		r.Post("/start", s.transition((*game.Session).Start))
		r.Post("/stop", s.transition((*game.Session).Stop))
		r.Post("/restart", s.transition((*game.Session).Restart))
		r.Post("/drag", s.handleDrag)
		r.Post("/drop", s.handleDrop)
		r.Get("/state", s.handleState)
	})
}

// moveReq is the payload of /game/drag and /game/drop.
type moveReq struct {
	Shape string  `json:"shape"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type dropRes struct {
	Decision string        `json:"decision"` // "snap" | "return"
	State    game.Snapshot `json:"state"`
}

// tableFor returns the owner's table, opening one on first use. Only a
// miss takes openMu, and the lookup is repeated under it.
func (s *Server) tableFor(ctx context.Context, owner string) (*table.Table, error) {
	if t, err := s.tables.Get(ctx, owner); !errors.Is(err, store.ErrNotFound) {
		return t, err
	}
	s.openMu.Lock()
	defer s.openMu.Unlock()
	t, err := s.tables.Get(ctx, owner)
	if !errors.Is(err, store.ErrNotFound) {
		return t, err
	}
	t, err = table.Open(ctx, table.Options{
		Owner:      owner,
		Store:      s.scores,
		Randomizer: s.randomizer(),
		Config:     s.game,
	})
	if err != nil {
		return nil, err
	}
	if err := s.tables.Save(ctx, t); err != nil {
		t.Close()
		return nil, err
	}
	log.Debug().Str("owner", owner).Msg("table opened")
	return t, nil
}

// randomizer deals reproducibly when LAYOUT_SEED is set.
func (s *Server) randomizer() *layout.Randomizer {
	if s.cfg.LayoutSeed != 0 {
		return layout.New(s.cfg.LayoutSeed)
	}
	return layout.NewRandom()
}

// transition wraps a phase-changing session method as a handler that
// answers with the new status.
func (s *Server) transition(op func(*game.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.tableFor(r.Context(), s.ownerID(w, r))
		if err != nil {
			s.gameError(w, r, err)
			return
		}
		var st game.Status
		err = t.Do(r.Context(), func(sess *game.Session) error {
			if err := op(sess); err != nil {
				return err
			}
			st = sess.Status()
			return nil
		})
		if err != nil {
			s.gameError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func decodeMove(w http.ResponseWriter, r *http.Request) (shapes.Kind, moveReq, bool) {
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return 0, req, false
	}
	k, ok := shapes.ParseKind(req.Shape)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_shape")
		return 0, req, false
	}
	return k, req, true
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	kind, req, ok := decodeMove(w, r)
	if !ok {
		return
	}
	t, err := s.tableFor(r.Context(), s.ownerID(w, r))
	if err != nil {
		s.gameError(w, r, err)
		return
	}
	if err := t.Do(r.Context(), func(sess *game.Session) error {
		return sess.Drag(kind, req.X, req.Y)
	}); err != nil {
		s.gameError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	kind, req, ok := decodeMove(w, r)
	if !ok {
		return
	}
	t, err := s.tableFor(r.Context(), s.ownerID(w, r))
	if err != nil {
		s.gameError(w, r, err)
		return
	}
	var res dropRes
	if err := t.Do(r.Context(), func(sess *game.Session) error {
		d, err := sess.DragEnd(kind, req.X, req.Y)
		if err != nil {
			return err
		}
		res = dropRes{Decision: d.String(), State: sess.Snapshot()}
		return nil
	}); err != nil {
		s.gameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	t, err := s.tableFor(r.Context(), s.ownerID(w, r))
	if err != nil {
		s.gameError(w, r, err)
		return
	}
	snap, err := t.View(r.Context())
	if err != nil {
		s.gameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleStream sends a "snapshot" event, then every render event of the
// owner's table until the client goes away or the table closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}
	t, err := s.tableFor(r.Context(), s.ownerID(w, r))
	if err != nil {
		s.gameError(w, r, err)
		return
	}
	sub := t.Subscribe()
	defer t.Unsubscribe(sub)

	snap, err := t.View(r.Context())
	if err != nil {
		s.gameError(w, r, err)
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.gameError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	writeSSE(w, "snapshot", data)
	flusher.Flush()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-sub:
			if !open {
				return
			}
			writeSSE(w, e.Name, e.Data)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

// writeSSE writes one event. Payloads are single-line JSON.
func writeSSE(w http.ResponseWriter, event string, data []byte) {
	_, _ = w.Write([]byte("event: " + event + "\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}

// gameError maps session and table errors to HTTP answers.
func (s *Server) gameError(w http.ResponseWriter, r *http.Request, err error) {
	var inv *game.InvariantError
	switch {
	case errors.As(err, &inv):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("invariant violation")
		writeError(w, http.StatusInternalServerError, "invariant_violation")
	case errors.Is(err, game.ErrNotPlaying):
		writeError(w, http.StatusConflict, "not_playing")
	case errors.Is(err, game.ErrNotDraggable):
		writeError(w, http.StatusConflict, "not_draggable")
	case errors.Is(err, game.ErrBadTransition):
		writeError(w, http.StatusConflict, "bad_transition")
	case errors.Is(err, clock.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "table_unavailable")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("game request failed")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
