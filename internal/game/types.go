// internal/game/types.go
//
// Core type definitions for a shape-matching game session.
// Defines:
//   - Phase: Idle → Playing → Finished lifecycle and its button label.
//   - Config: timings and board geometry of a session.
//   - Renderer: the presentation port every state change is pushed to.
//   - Status / Report / Snapshot: read models handed to callers.
//   - Errors returned by session operations.

package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/shapematch/internal/board"
	"github.com/robalobadob/shapematch/internal/match"
	"github.com/robalobadob/shapematch/internal/shapes"
)

// Phase is the lifecycle state of a session.
type Phase int

const (
	Idle Phase = iota
	Playing
	Finished
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for _, v := range []Phase{Idle, Playing, Finished} {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Button is the label of the single start/stop control in this phase.
func (p Phase) Button() string {
	switch p {
	case Playing:
		return "Stop"
	case Finished:
		return "Restart"
	}
	return "Start"
}

// Config holds the timings of a session. Zero fields fall back to
// DefaultConfig.
type Config struct {
	Geometry       shapes.Geometry
	TickInterval   time.Duration // timer display refresh
	SettleDelay    time.Duration // snap → completion check
	AnnounceDelay  time.Duration // completion → report
	SnapDuration   time.Duration // animation hint for a snap
	ReturnDuration time.Duration // animation hint for a return
	StoreTimeout   time.Duration // per score store call
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		Geometry:       shapes.DefaultGeometry(),
		TickInterval:   100 * time.Millisecond,
		SettleDelay:    match.DefaultSettleDelay,
		AnnounceDelay:  550 * time.Millisecond,
		SnapDuration:   250 * time.Millisecond,
		ReturnDuration: 500 * time.Millisecond,
		StoreTimeout:   2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Geometry == (shapes.Geometry{}) {
		c.Geometry = d.Geometry
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.AnnounceDelay <= 0 {
		c.AnnounceDelay = d.AnnounceDelay
	}
	if c.SnapDuration <= 0 {
		c.SnapDuration = d.SnapDuration
	}
	if c.ReturnDuration <= 0 {
		c.ReturnDuration = d.ReturnDuration
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	return c
}

// EaseInOut is the easing used for snap and return animations.
const EaseInOut = "ease-in-out"

// Transition tells the renderer how to animate a position change. The
// zero value means "move immediately" (drags, deals).
type Transition struct {
	Duration time.Duration
	Easing   string
}

// ShapeUpdate is a shape's new state plus how to get there.
type ShapeUpdate struct {
	Shape      board.PlacedShape
	Transition Transition
}

// Status is the scoreboard: phase, running timer and stored scores.
type Status struct {
	Phase     Phase   `json:"phase"`
	Button    string  `json:"button"`
	ElapsedMs int64   `json:"elapsedMs"`
	Score     float64 `json:"score"`
	LastScore float64 `json:"lastScore"`
	HighScore float64 `json:"highScore"`
	Matched   int     `json:"matched"`
	Total     int     `json:"total"`
	Round     uint64  `json:"round"`
}

// Report is the announcement of a completed round.
type Report struct {
	Score        float64 `json:"score"`
	LastScore    float64 `json:"lastScore"`
	HighScore    float64 `json:"highScore"`
	NewHighScore bool    `json:"newHighScore"`
	Message      string  `json:"message"`
}

// Snapshot is the full state of a session for clients that (re)attach.
type Snapshot struct {
	Status      Status                   `json:"status"`
	Geometry    shapes.Geometry          `json:"geometry"`
	Specs       []shapes.Spec            `json:"specs"`
	Style       shapes.Style             `json:"style"`
	Shapes      []board.PlacedShape      `json:"shapes"`
	Silhouettes []board.PlacedSilhouette `json:"silhouettes"`
	Blueprints  []board.Blueprint        `json:"blueprints"`
	Report      *Report                  `json:"report,omitempty"`
}

// Renderer receives every visible change of a session. Calls happen on
// the session's goroutine and must not call back into the session.
type Renderer interface {
	RenderShape(u ShapeUpdate)
	RenderSilhouette(s board.PlacedSilhouette)
	RenderStatus(s Status)
	RenderReport(r Report)
}

type nopRenderer struct{}

func (nopRenderer) RenderShape(ShapeUpdate)                 {}
func (nopRenderer) RenderSilhouette(board.PlacedSilhouette) {}
func (nopRenderer) RenderStatus(Status)                     {}
func (nopRenderer) RenderReport(Report)                     {}

var (
	ErrNotPlaying    = errors.New("game is not in progress")
	ErrNotDraggable  = errors.New("shape cannot be dragged")
	ErrBadTransition = errors.New("invalid phase transition")
)

// InvariantError reports board state that should be impossible, such as
// a shape kind with no silhouette.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }
