// internal/game/session.go
//
// Game session controller for one player.
// Responsibilities:
//   - Drive the Idle → Playing → Finished lifecycle from button clicks.
//   - Deal rounds through the layout randomizer onto the board.
//   - Route drags and drops through the match engine.
//   - Run the elapsed-time ticker and detect completion after a snap settles.
//   - Compute the score, update last/high score and persist them.
//
// Notes:
//   - A Session is not safe for concurrent use. Every call, and every clock
//     callback, must happen on one goroutine (see clock.Loop).
//   - Each scheduled callback captures the round generation. Stop, Restart
//     and completion bump it, so callbacks from an earlier round are no-ops.

package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/shapematch/internal/board"
	"github.com/robalobadob/shapematch/internal/clock"
	"github.com/robalobadob/shapematch/internal/layout"
	"github.com/robalobadob/shapematch/internal/match"
	"github.com/robalobadob/shapematch/internal/scores"
	"github.com/robalobadob/shapematch/internal/shapes"
)

// Options wires a Session to its collaborators. Clock is required; a nil
// Store keeps scores in the session only, a nil Renderer discards output
// and a nil Randomizer deals from a randomly seeded one.
type Options struct {
	Clock      clock.Clock
	Store      scores.Store
	Owner      string
	Renderer   Renderer
	Randomizer *layout.Randomizer
	Config     Config
}

// Session is one player's game.
type Session struct {
	cfg    Config
	clock  clock.Clock
	store  scores.Store
	owner  string
	render Renderer
	rng    *layout.Randomizer
	board  *board.Board
	engine *match.Engine
	logger zerolog.Logger

	phase   Phase
	gen     uint64
	round   uint64
	start   time.Time
	elapsed time.Duration
	ticks   int64
	scores  scores.Scores
	report  *Report

	ticker  clock.Timer
	pending []clock.Timer
}

// New builds a session, loads the owner's stored scores and deals the
// first board so an idle session already shows its pieces. A store
// failure is logged and the session starts with no scores.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Clock == nil {
		return nil, errors.New("game: nil clock")
	}
	cfg := opts.Config.withDefaults()
	s := &Session{
		cfg:    cfg,
		clock:  opts.Clock,
		store:  opts.Store,
		owner:  opts.Owner,
		render: opts.Renderer,
		rng:    opts.Randomizer,
		board:  board.New(cfg.Geometry),
		logger: log.With().Str("owner", opts.Owner).Logger(),
	}
	if s.render == nil {
		s.render = nopRenderer{}
	}
	if s.rng == nil {
		s.rng = layout.NewRandom()
	}
	s.engine = &match.Engine{Board: s.board, Clock: s.clock, SettleDelay: cfg.SettleDelay}

	if s.store != nil {
		lctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		loaded, err := s.store.Load(lctx, s.owner)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Msg("load scores failed; starting without scores")
		} else {
			s.scores = loaded
		}
	}

	if err := s.deal(); err != nil {
		return nil, err
	}
	return s, nil
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase { return s.phase }

// Click handles the single start/stop button: it stops a running round,
// starts the dealt board the first time and restarts afterwards.
func (s *Session) Click() error {
	switch s.phase {
	case Playing:
		return s.Stop()
	case Idle:
		return s.Start()
	default:
		return s.Restart()
	}
}

// Start begins play on the current board.
func (s *Session) Start() error {
	if s.phase != Idle {
		return fmt.Errorf("start from %s: %w", s.phase, ErrBadTransition)
	}
	s.board.SetDraggable(true)
	s.phase = Playing
	s.elapsed = 0
	s.ticks = 0
	s.report = nil
	s.start = s.clock.Now()
	s.armTick()

	s.renderShapes(Transition{})
	s.render.RenderStatus(s.Status())
	s.logger.Debug().Uint64("round", s.round).Msg("round started")
	return nil
}

// Stop abandons the running round. Nothing is scored.
func (s *Session) Stop() error {
	if s.phase != Playing {
		return fmt.Errorf("stop from %s: %w", s.phase, ErrBadTransition)
	}
	s.elapsed = s.clock.Now().Sub(s.start)
	if err := s.finish(); err != nil {
		return err
	}
	s.render.RenderStatus(s.Status())
	s.logger.Debug().Uint64("round", s.round).Msg("round stopped")
	return nil
}

// Restart deals a fresh board and starts it.
func (s *Session) Restart() error {
	if s.phase == Playing {
		return fmt.Errorf("restart from %s: %w", s.phase, ErrBadTransition)
	}
	s.invalidate()
	s.board.Reset()
	if err := s.deal(); err != nil {
		return err
	}
	return s.Start()
}

// Drag moves a shape to an intermediate position and highlights its
// silhouette while the shape would snap there.
func (s *Session) Drag(kind shapes.Kind, x, y float64) error {
	if err := s.draggable(kind); err != nil {
		return err
	}
	if err := s.board.MoveShape(kind, x, y); err != nil {
		return s.invariant("drag", err)
	}
	shape, err := s.board.Shape(kind)
	if err != nil {
		return s.invariant("drag", err)
	}
	sil, err := s.board.SilhouetteFor(kind)
	if err != nil {
		return s.invariant("drag", err)
	}
	s.highlight(sil, match.EvaluateDrop(shape, sil) == match.Snap)
	s.render.RenderShape(ShapeUpdate{Shape: shape})
	return nil
}

// DragEnd drops a shape and snaps or returns it. A snap schedules the
// completion check once the move has settled.
func (s *Session) DragEnd(kind shapes.Kind, x, y float64) (match.Decision, error) {
	if err := s.draggable(kind); err != nil {
		return match.Return, err
	}
	sil, err := s.board.SilhouetteFor(kind)
	if err != nil {
		return match.Return, s.invariant("drop", err)
	}
	s.highlight(sil, false)

	gen := s.gen
	out, err := s.engine.Drop(kind, board.Point{X: x, Y: y}, func() { s.settled(gen) })
	if err != nil {
		return match.Return, s.invariant("drop", err)
	}
	tr := Transition{Duration: s.cfg.ReturnDuration, Easing: EaseInOut}
	if out.Decision == match.Snap {
		tr.Duration = s.cfg.SnapDuration
		s.pending = append(s.pending, out.Check)
	}
	s.render.RenderShape(ShapeUpdate{Shape: out.Shape, Transition: tr})
	s.render.RenderStatus(s.Status())
	return out.Decision, nil
}

// Status returns the scoreboard. While playing, the elapsed time is the
// value shown by the last tick.
func (s *Session) Status() Status {
	total := 0
	if s.board.Initialized() {
		total = len(shapes.Kinds())
	}
	return Status{
		Phase:     s.phase,
		Button:    s.phase.Button(),
		ElapsedMs: s.elapsed.Milliseconds(),
		Score:     scoreOf(s.elapsed),
		LastScore: s.scores.Last,
		HighScore: s.scores.High,
		Matched:   match.Matched(s.board.Shapes(), s.board.Silhouettes()),
		Total:     total,
		Round:     s.round,
	}
}

// Snapshot returns everything a client needs to draw the session.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Status:      s.Status(),
		Geometry:    s.cfg.Geometry,
		Specs:       shapes.Specs(),
		Style:       shapes.DefaultStyle(),
		Shapes:      s.board.Shapes(),
		Silhouettes: s.board.Silhouettes(),
		Blueprints:  s.board.Blueprints(),
	}
	if s.report != nil {
		r := *s.report
		snap.Report = &r
	}
	return snap
}

// Scores returns the owner's last and best times.
func (s *Session) Scores() scores.Scores { return s.scores }

// Close cancels every pending callback.
func (s *Session) Close() { s.invalidate() }

func (s *Session) deal() error {
	l := s.rng.Build(shapes.Kinds(), shapes.Palette(), s.cfg.Geometry)
	if err := s.board.InitRound(l); err != nil {
		return s.invariant("deal", err)
	}
	s.phase = Idle
	s.elapsed = 0
	s.round++
	s.renderShapes(Transition{})
	for _, sil := range s.board.Silhouettes() {
		s.render.RenderSilhouette(sil)
	}
	s.render.RenderStatus(s.Status())
	return nil
}

func (s *Session) draggable(kind shapes.Kind) error {
	if s.phase != Playing {
		return ErrNotPlaying
	}
	shape, err := s.board.Shape(kind)
	if err != nil {
		return s.invariant("shape lookup", err)
	}
	if !shape.Draggable {
		return fmt.Errorf("%s: %w", kind, ErrNotDraggable)
	}
	return nil
}

func (s *Session) highlight(sil board.PlacedSilhouette, on bool) {
	if sil.Highlighted == on {
		return
	}
	if err := s.board.Highlight(sil.Kind, on); err != nil {
		return
	}
	sil.Highlighted = on
	s.render.RenderSilhouette(sil)
}

// armTick schedules the next timer refresh on the interval grid measured
// from the round start, so late callbacks never push later ticks back.
func (s *Session) armTick() {
	gen := s.gen
	s.ticks++
	due := s.start.Add(time.Duration(s.ticks) * s.cfg.TickInterval)
	d := due.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.ticker = s.clock.AfterFunc(d, func() { s.tick(gen) })
}

func (s *Session) tick(gen uint64) {
	if gen != s.gen || s.phase != Playing {
		return
	}
	now := s.clock.Now()
	s.elapsed = now.Sub(s.start)
	if behind := int64(s.elapsed / s.cfg.TickInterval); behind > s.ticks {
		s.ticks = behind
	}
	s.render.RenderStatus(s.Status())
	s.armTick()
}

func (s *Session) settled(gen uint64) {
	if gen != s.gen || s.phase != Playing {
		return
	}
	if !match.IsComplete(s.board.Shapes(), s.board.Silhouettes()) {
		return
	}
	s.complete()
}

func (s *Session) complete() {
	now := s.clock.Now()
	s.elapsed = now.Sub(s.start)
	if err := s.finish(); err != nil {
		return
	}

	score := scoreOf(s.elapsed)
	newHigh := score < s.scores.High || s.scores.High == 0
	s.scores.Last = score
	if newHigh {
		s.scores.High = score
	}
	s.persist(scores.Result{
		OwnerID:   s.owner,
		ElapsedMs: s.elapsed.Milliseconds(),
		NewHigh:   newHigh,
		At:        now,
	})

	msg := "Congratulations! You have completed the game in " +
		strconv.FormatFloat(score, 'f', -1, 64) + " seconds."
	if newHigh {
		msg += " NEW HIGH SCORE!"
	}
	r := Report{
		Score:        score,
		LastScore:    s.scores.Last,
		HighScore:    s.scores.High,
		NewHighScore: newHigh,
		Message:      msg,
	}
	s.report = &r
	s.render.RenderStatus(s.Status())
	s.logger.Info().
		Uint64("round", s.round).
		Int64("elapsedMs", s.elapsed.Milliseconds()).
		Bool("newHigh", newHigh).
		Msg("round completed")

	gen := s.gen
	s.pending = append(s.pending, s.clock.AfterFunc(s.cfg.AnnounceDelay, func() {
		if gen != s.gen {
			return
		}
		s.render.RenderReport(r)
	}))
}

// persist saves scores and appends the result. Storage errors are logged
// and never reach the player.
func (s *Session) persist(r scores.Result) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancel()
	if err := s.store.Save(ctx, s.owner, s.scores); err != nil {
		s.logger.Error().Err(err).Msg("save scores failed")
	}
	if err := s.store.Record(ctx, r); err != nil {
		s.logger.Error().Err(err).Msg("record result failed")
	}
}

// finish ends the round: no more drags, no more callbacks, every shape
// back at its deal slot.
func (s *Session) finish() error {
	s.invalidate()
	s.board.SetDraggable(false)
	s.phase = Finished
	for _, sil := range s.board.Silhouettes() {
		s.highlight(sil, false)
	}
	back := Transition{Duration: s.cfg.ReturnDuration, Easing: EaseInOut}
	for _, sh := range s.board.Shapes() {
		placed, err := s.engine.ReturnHome(sh.Kind)
		if err != nil {
			return s.invariant("return home", err)
		}
		s.render.RenderShape(ShapeUpdate{Shape: placed, Transition: back})
	}
	return nil
}

// invalidate starts a new generation and stops every pending timer.
func (s *Session) invalidate() {
	s.gen++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	for _, t := range s.pending {
		t.Stop()
	}
	s.pending = nil
}

func (s *Session) renderShapes(tr Transition) {
	for _, sh := range s.board.Shapes() {
		s.render.RenderShape(ShapeUpdate{Shape: sh, Transition: tr})
	}
}

func (s *Session) invariant(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("board invariant violated")
	return &InvariantError{Op: op, Err: err}
}

// scoreOf converts elapsed time to a score in seconds with millisecond
// resolution.
func scoreOf(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
