// internal/match/match.go
//
// Drop evaluation for a dragged shape.
// Responsibilities:
//   - Decide Snap vs Return from the distance between a shape and the
//     silhouette of the same kind (fixed 50-unit tolerance on each axis).
//   - Apply the decision to the board: Snap puts the shape exactly on the
//     silhouette and marks it matched; Return sends it to its deal slot.
//   - After a Snap, schedule the completion check once the move settles.

package match

import (
	"math"
	"time"

	"github.com/robalobadob/shapematch/internal/board"
	"github.com/robalobadob/shapematch/internal/clock"
	"github.com/robalobadob/shapematch/internal/shapes"
)

// Decision is the outcome of a drop.
type Decision int

const (
	Return Decision = iota
	Snap
)

func (d Decision) String() string {
	if d == Snap {
		return "snap"
	}
	return "return"
}

// Tolerance is the absolute per-axis distance under which a drop snaps.
// It is not scaled by shape size.
const Tolerance = 50.0

// DefaultSettleDelay is the pause between a snap and its completion check.
const DefaultSettleDelay = 300 * time.Millisecond

// EvaluateDrop returns Snap when the shape lies strictly within Tolerance
// of the silhouette on both axes.
func EvaluateDrop(shape board.PlacedShape, silhouette board.PlacedSilhouette) Decision {
	dx := math.Abs(shape.Pos.X - silhouette.Pos.X)
	dy := math.Abs(shape.Pos.Y - silhouette.Pos.Y)
	if dx < Tolerance && dy < Tolerance {
		return Snap
	}
	return Return
}

// Engine applies drop decisions to a board.
type Engine struct {
	Board       *board.Board
	Clock       clock.Clock
	SettleDelay time.Duration
}

// Outcome reports what a drop did. Check is the pending completion check
// for a Snap and nil for a Return.
type Outcome struct {
	Decision Decision
	Shape    board.PlacedShape
	Check    clock.Timer
}

// Drop places the shape of kind at the drop point, evaluates it against
// its silhouette and applies the decision. On Snap, settled is scheduled
// after SettleDelay; it never runs inside Drop.
func (e *Engine) Drop(kind shapes.Kind, at board.Point, settled func()) (Outcome, error) {
	if err := e.Board.MoveShape(kind, at.X, at.Y); err != nil {
		return Outcome{}, err
	}
	shape, err := e.Board.Shape(kind)
	if err != nil {
		return Outcome{}, err
	}
	sil, err := e.Board.SilhouetteFor(kind)
	if err != nil {
		return Outcome{}, err
	}

	if EvaluateDrop(shape, sil) == Return {
		placed, err := e.ReturnHome(kind)
		return Outcome{Decision: Return, Shape: placed}, err
	}

	if err := e.Board.MoveShape(kind, sil.Pos.X, sil.Pos.Y); err != nil {
		return Outcome{}, err
	}
	if err := e.Board.MarkMatched(kind); err != nil {
		return Outcome{}, err
	}
	placed, err := e.Board.Shape(kind)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Decision: Snap, Shape: placed}
	if settled != nil {
		delay := e.SettleDelay
		if delay <= 0 {
			delay = DefaultSettleDelay
		}
		out.Check = e.Clock.AfterFunc(delay, settled)
	}
	return out, nil
}

// ReturnHome moves the shape back to the slot it was dealt at, whatever
// slot its silhouette ended up in.
func (e *Engine) ReturnHome(kind shapes.Kind) (board.PlacedShape, error) {
	shape, err := e.Board.Shape(kind)
	if err != nil {
		return board.PlacedShape{}, err
	}
	if err := e.Board.MoveShape(kind, shape.Home.X, shape.Home.Y); err != nil {
		return board.PlacedShape{}, err
	}
	return e.Board.Shape(kind)
}
