package layout

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/shapematch/internal/shapes"
)

func TestShuffle_DoesNotMutateInput(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	out := Shuffle(rand.New(rand.NewPCG(1, 2)), in)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, in)
	assert.ElementsMatch(t, in, out)
}

func TestShuffle_Empty(t *testing.T) {
	out := Shuffle(rand.New(rand.NewPCG(1, 2)), []string{})
	assert.Empty(t, out)
}

func TestBuild_Bijections(t *testing.T) {
	r := New(7)
	g := shapes.DefaultGeometry()
	for i := 0; i < 200; i++ {
		l := r.Build(shapes.Kinds(), shapes.Palette(), g)
		require.NoError(t, l.Validate())
		assert.ElementsMatch(t, shapes.Kinds(), l.Shapes)
		assert.ElementsMatch(t, shapes.Kinds(), l.Silhouettes)
		assert.Len(t, l.Colors, 5)
		for slot, y := range l.Slots {
			assert.Equal(t, g.SlotY(slot), y)
		}
	}
}

func TestBuild_ColorsCycleWhenShort(t *testing.T) {
	l := New(3).Build(shapes.Kinds(), []string{"red", "blue"}, shapes.DefaultGeometry())
	for _, c := range l.Colors {
		assert.Contains(t, []string{"red", "blue"}, c)
	}
	assert.Equal(t, l.Colors[0], l.Colors[2])
}

func TestBuild_FreshLayoutEachCall(t *testing.T) {
	r := New(11)
	g := shapes.DefaultGeometry()
	first := r.Build(shapes.Kinds(), shapes.Palette(), g)
	differs := false
	for i := 0; i < 20 && !differs; i++ {
		next := r.Build(shapes.Kinds(), shapes.Palette(), g)
		differs = !assert.ObjectsAreEqual(first.Shapes, next.Shapes) ||
			!assert.ObjectsAreEqual(first.Silhouettes, next.Silhouettes)
	}
	assert.True(t, differs, "twenty consecutive deals were identical")
}

// chiSquare over the slot × kind frequency table. With 5 kinds the
// statistic has (5-1)^2 = 16 degrees of freedom; 50 is far beyond the
// 0.1% critical value (39.25).
func TestBuild_SlotKindFrequencyIsUniform(t *testing.T) {
	const trials = 20000
	r := New(2024)
	g := shapes.DefaultGeometry()
	kinds := shapes.Kinds()
	n := len(kinds)

	shapeFreq := make([][]int, n)
	silFreq := make([][]int, n)
	for i := range shapeFreq {
		shapeFreq[i] = make([]int, n)
		silFreq[i] = make([]int, n)
	}
	for i := 0; i < trials; i++ {
		l := r.Build(kinds, shapes.Palette(), g)
		for slot := 0; slot < n; slot++ {
			shapeFreq[slot][l.Shapes[slot]]++
			silFreq[slot][l.Silhouettes[slot]]++
		}
	}
	expected := float64(trials) / float64(n)
	for name, freq := range map[string][][]int{"shapes": shapeFreq, "silhouettes": silFreq} {
		chi := 0.0
		for _, row := range freq {
			for _, obs := range row {
				d := float64(obs) - expected
				chi += d * d / expected
			}
		}
		assert.Less(t, chi, 50.0, "%s chi-square %.2f", name, chi)
	}
}

// Every one of the 120 permutations of five kinds should show up about
// equally often. df = 119 (mean 119, sd ≈ 15.4); 200 is more than five
// standard deviations out.
func TestShuffle_PermutationsAreUniform(t *testing.T) {
	const trials = 24000
	rng := rand.New(rand.NewPCG(99, 100))
	counts := map[string]int{}
	kinds := shapes.Kinds()
	for i := 0; i < trials; i++ {
		var sb strings.Builder
		for _, k := range Shuffle(rng, kinds) {
			sb.WriteString(k.String()[:2])
		}
		counts[sb.String()]++
	}
	require.Len(t, counts, 120)
	expected := float64(trials) / 120
	chi := 0.0
	for _, obs := range counts {
		d := float64(obs) - expected
		chi += d * d / expected
	}
	assert.Less(t, chi, 200.0)
}

func TestValidate(t *testing.T) {
	g := shapes.DefaultGeometry()
	good := New(1).Build(shapes.Kinds(), shapes.Palette(), g)
	require.NoError(t, good.Validate())

	dup := good
	dup.Shapes = append([]shapes.Kind{}, good.Shapes...)
	dup.Shapes[1] = dup.Shapes[0]
	assert.ErrorIs(t, dup.Validate(), ErrInvalidLayout)

	short := good
	short.Slots = good.Slots[:3]
	assert.ErrorIs(t, short.Validate(), ErrInvalidLayout)

	mismatch := good
	mismatch.Silhouettes = []shapes.Kind{shapes.Star, shapes.Star, shapes.Star, shapes.Star, shapes.Star}
	assert.ErrorIs(t, mismatch.Validate(), ErrInvalidLayout)
}
