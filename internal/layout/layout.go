// internal/layout/layout.go
//
// Randomized dealing of a round.
// Responsibilities:
//   - Uniform shuffling (Fisher–Yates through rand.Rand.Shuffle).
//   - Building a RoundLayout: independent permutations of the kinds for the
//     shape column and for the silhouette column, plus a permutation of colors.
//
// Sort-with-random-comparator tricks are not uniform and must not be used here.

package layout

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/robalobadob/shapematch/internal/shapes"
)

// Shuffle returns a uniformly permuted copy of items. items is not modified.
func Shuffle[T any](rng *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// RoundLayout assigns kinds and colors to the N slots of one round.
// Slot i holds shape Shapes[i] (colored Colors[i]) and silhouette
// Silhouettes[i], both at vertical offset Slots[i].
type RoundLayout struct {
	Shapes      []shapes.Kind
	Silhouettes []shapes.Kind
	Colors      []string
	Slots       []float64
}

// Randomizer deals layouts. It is not safe for concurrent use; each game
// session owns its own.
type Randomizer struct {
	rng *rand.Rand
}

// New returns a Randomizer with a fixed seed (reproducible deals).
func New(seed uint64) *Randomizer {
	return &Randomizer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a Randomizer seeded from crypto/rand.
func NewRandom() *Randomizer {
	var b [16]byte
	_, _ = crand.Read(b[:])
	return &Randomizer{rng: rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]),
	))}
}

// Build deals a fresh layout. Shape order, silhouette order and colors are
// three independent shuffles. If there are fewer colors than kinds the
// shuffled colors are reused cyclically.
func (r *Randomizer) Build(kinds []shapes.Kind, colors []string, g shapes.Geometry) RoundLayout {
	n := len(kinds)
	l := RoundLayout{
		Shapes:      Shuffle(r.rng, kinds),
		Silhouettes: Shuffle(r.rng, kinds),
		Colors:      make([]string, n),
		Slots:       make([]float64, n),
	}
	dealt := Shuffle(r.rng, colors)
	for i := 0; i < n; i++ {
		if len(dealt) > 0 {
			l.Colors[i] = dealt[i%len(dealt)]
		}
		l.Slots[i] = g.SlotY(i)
	}
	return l
}

var ErrInvalidLayout = errors.New("invalid layout")

// Validate checks that shapes and silhouettes are permutations of the same
// set of distinct kinds and that every slot has a position.
func (l RoundLayout) Validate() error {
	n := len(l.Shapes)
	if len(l.Silhouettes) != n || len(l.Slots) != n || len(l.Colors) != n {
		return fmt.Errorf("%w: %d shapes, %d silhouettes, %d slots, %d colors",
			ErrInvalidLayout, n, len(l.Silhouettes), len(l.Slots), len(l.Colors))
	}
	seen := make(map[shapes.Kind]int, n)
	for _, k := range l.Shapes {
		if !k.Valid() {
			return fmt.Errorf("%w: unknown %s", ErrInvalidLayout, k)
		}
		seen[k]++
		if seen[k] > 1 {
			return fmt.Errorf("%w: duplicate shape %s", ErrInvalidLayout, k)
		}
	}
	for _, k := range l.Silhouettes {
		if seen[k] != 1 {
			return fmt.Errorf("%w: silhouette %s has no single matching shape", ErrInvalidLayout, k)
		}
		seen[k]++
	}
	return nil
}
