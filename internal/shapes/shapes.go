// internal/shapes/shapes.go
//
// Static catalog of the playable shape kinds.
// Defines:
//   - Kind: the closed set of archetypes (rectangle, circle, triangle, polygon, star).
//   - Spec: geometric parameters for drawing a kind.
//   - Geometry: board constants shared by layout, board and renderer.
//
// Nothing here is mutated after process start.

package shapes

import "fmt"

// Kind identifies one of the fixed shape archetypes.
type Kind int

const (
	Rectangle Kind = iota
	Circle
	Triangle
	Polygon
	Star

	numKinds = iota
)

var kindNames = [numKinds]string{
	Rectangle: "rectangle",
	Circle:    "circle",
	Triangle:  "triangle",
	Polygon:   "polygon",
	Star:      "star",
}

// String returns the lowercase name used on the wire ("rectangle", "circle", ...).
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k belongs to the catalog.
func (k Kind) Valid() bool { return k >= 0 && k < numKinds }

// ParseKind maps a wire name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// MarshalText encodes the kind by its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown shape %s", k)
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText accepts a wire name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown shape %q", b)
	}
	*k = v
	return nil
}

// Kinds returns every kind in deal order. The slice is a fresh copy.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Spec holds the drawing parameters of a kind. Fields that do not apply
// to a kind are zero (a circle has no Sides, a rectangle no Radius).
type Spec struct {
	Kind        Kind    `json:"kind"`
	Width       float64 `json:"width,omitempty"`       // rectangle only
	Height      float64 `json:"height,omitempty"`      // rectangle only
	Radius      float64 `json:"radius,omitempty"`      // circle and regular polygons
	Sides       int     `json:"sides,omitempty"`       // regular polygons
	Points      int     `json:"points,omitempty"`      // star
	InnerRadius float64 `json:"innerRadius,omitempty"` // star
	OuterRadius float64 `json:"outerRadius,omitempty"` // star
	Offset      float64 `json:"offset"`                // shifts the anchor to the upper left corner
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

const (
	strokeColor = "black"
	strokeWidth = 4
)

var specs = func() [numKinds]Spec {
	size := DefaultGeometry().ShapeSize
	half := size / 2
	return [numKinds]Spec{
		Rectangle: {Kind: Rectangle, Width: size - 8, Height: size - 8, Offset: -4},
		Circle:    {Kind: Circle, Radius: half, Offset: -half},
		Triangle:  {Kind: Triangle, Sides: 3, Radius: half, Offset: -half},
		Polygon:   {Kind: Polygon, Sides: 8, Radius: half, Offset: -half},
		Star:      {Kind: Star, Points: 6, InnerRadius: size / 3, OuterRadius: half, Offset: -half},
	}
}()

// SpecFor returns the parameters of k. The kind set is closed, so an
// out-of-range value is a programming error and panics.
func SpecFor(k Kind) Spec {
	if !k.Valid() {
		panic(fmt.Sprintf("shapes: no spec for %s", k))
	}
	s := specs[k]
	s.Stroke = strokeColor
	s.StrokeWidth = strokeWidth
	return s
}

// Specs returns the parameters of every kind in deal order.
func Specs() []Spec {
	out := make([]Spec, 0, numKinds)
	for _, k := range Kinds() {
		out = append(out, SpecFor(k))
	}
	return out
}
