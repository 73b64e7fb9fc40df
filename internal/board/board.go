// internal/board/board.go
//
// Live positions of every piece in the active round.
// Responsibilities:
//   - Build draggable shapes, silhouettes and blueprints from a RoundLayout.
//   - Kind-keyed lookups (a shape and its silhouette are paired by kind,
//     never by slot index).
//   - Mutations: move, enable/disable dragging, mark matched, reset.
//
// Board is not safe for concurrent use; the game session serializes access.

package board

import (
	"errors"
	"fmt"

	"github.com/robalobadob/shapematch/internal/layout"
	"github.com/robalobadob/shapematch/internal/shapes"
)

// ErrNotFound is returned for lookups before a round is dealt or for a
// kind that is not on the board.
var ErrNotFound = errors.New("not on board")

// Point is a board position in canvas units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlacedShape is one draggable piece.
type PlacedShape struct {
	Kind      shapes.Kind `json:"kind"`
	Pos       Point       `json:"pos"`
	Home      Point       `json:"home"` // deal position; "return" always goes here
	Slot      int         `json:"slot"`
	Color     string      `json:"color"`
	Draggable bool        `json:"draggable"`
	Matched   bool        `json:"matched"`
}

// PlacedSilhouette is the fixed target for the shape of the same kind.
type PlacedSilhouette struct {
	Kind        shapes.Kind `json:"kind"`
	Pos         Point       `json:"pos"`
	Slot        int         `json:"slot"`
	Highlighted bool        `json:"highlighted"`
}

// Blueprint is the faint outline left at a shape's deal slot.
type Blueprint struct {
	Kind shapes.Kind `json:"kind"`
	Pos  Point       `json:"pos"`
	Slot int         `json:"slot"`
}

// Board owns all pieces of the current round.
type Board struct {
	geom        shapes.Geometry
	order       []shapes.Kind // shape kinds by deal slot
	silOrder    []shapes.Kind // silhouette kinds by slot
	shapes      map[shapes.Kind]*PlacedShape
	silhouettes map[shapes.Kind]*PlacedSilhouette
}

// New returns an empty board for the given geometry.
func New(g shapes.Geometry) *Board {
	return &Board{geom: g}
}

// Geometry returns the board dimensions.
func (b *Board) Geometry() shapes.Geometry { return b.geom }

// InitRound replaces the board contents with the pieces described by l.
// All shapes start neither draggable nor matched.
func (b *Board) InitRound(l layout.RoundLayout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	b.Reset()
	b.order = append([]shapes.Kind(nil), l.Shapes...)
	b.silOrder = append([]shapes.Kind(nil), l.Silhouettes...)
	b.shapes = make(map[shapes.Kind]*PlacedShape, len(l.Shapes))
	b.silhouettes = make(map[shapes.Kind]*PlacedSilhouette, len(l.Silhouettes))
	for slot, k := range l.Shapes {
		home := Point{X: b.geom.ShapeColumnX, Y: l.Slots[slot]}
		b.shapes[k] = &PlacedShape{
			Kind:  k,
			Pos:   home,
			Home:  home,
			Slot:  slot,
			Color: l.Colors[slot],
		}
	}
	for slot, k := range l.Silhouettes {
		b.silhouettes[k] = &PlacedSilhouette{
			Kind: k,
			Pos:  Point{X: b.geom.SilhouetteColumnX, Y: l.Slots[slot]},
			Slot: slot,
		}
	}
	return nil
}

// Initialized reports whether a round has been dealt.
func (b *Board) Initialized() bool { return b.shapes != nil }

// Reset discards every piece.
func (b *Board) Reset() {
	b.order = nil
	b.silOrder = nil
	b.shapes = nil
	b.silhouettes = nil
}

// SetDraggable enables or disables dragging on all shapes at once.
func (b *Board) SetDraggable(enabled bool) {
	for _, s := range b.shapes {
		s.Draggable = enabled
	}
}

// MoveShape sets the live position of the shape of kind k.
func (b *Board) MoveShape(k shapes.Kind, x, y float64) error {
	s, err := b.shape(k)
	if err != nil {
		return err
	}
	s.Pos = Point{X: x, Y: y}
	return nil
}

// MarkMatched flags the shape as matched and stops it from being dragged.
func (b *Board) MarkMatched(k shapes.Kind) error {
	s, err := b.shape(k)
	if err != nil {
		return err
	}
	s.Matched = true
	s.Draggable = false
	return nil
}

// Highlight toggles the visual highlight of a silhouette.
func (b *Board) Highlight(k shapes.Kind, on bool) error {
	s, ok := b.silhouettes[k]
	if !ok {
		return fmt.Errorf("silhouette %s: %w", k, ErrNotFound)
	}
	s.Highlighted = on
	return nil
}

// Shape returns a copy of the shape of kind k.
func (b *Board) Shape(k shapes.Kind) (PlacedShape, error) {
	s, err := b.shape(k)
	if err != nil {
		return PlacedShape{}, err
	}
	return *s, nil
}

// SilhouetteFor returns the silhouette paired with kind k.
func (b *Board) SilhouetteFor(k shapes.Kind) (PlacedSilhouette, error) {
	s, ok := b.silhouettes[k]
	if !ok {
		return PlacedSilhouette{}, fmt.Errorf("silhouette %s: %w", k, ErrNotFound)
	}
	return *s, nil
}

// Shapes returns copies of all shapes in deal order.
func (b *Board) Shapes() []PlacedShape {
	out := make([]PlacedShape, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, *b.shapes[k])
	}
	return out
}

// Silhouettes returns copies of all silhouettes in slot order.
func (b *Board) Silhouettes() []PlacedSilhouette {
	out := make([]PlacedSilhouette, 0, len(b.silOrder))
	for _, k := range b.silOrder {
		out = append(out, *b.silhouettes[k])
	}
	return out
}

// Blueprints returns the outline left at each shape's deal slot. A
// blueprint's row always tracks the shape it outlines.
func (b *Board) Blueprints() []Blueprint {
	out := make([]Blueprint, 0, len(b.order))
	for _, k := range b.order {
		s := b.shapes[k]
		out = append(out, Blueprint{Kind: k, Pos: s.Home, Slot: s.Slot})
	}
	return out
}

func (b *Board) shape(k shapes.Kind) (*PlacedShape, error) {
	s, ok := b.shapes[k]
	if !ok {
		return nil, fmt.Errorf("shape %s: %w", k, ErrNotFound)
	}
	return s, nil
}
