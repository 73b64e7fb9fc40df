package match

import (
	"github.com/robalobadob/shapematch/internal/board"
	"github.com/robalobadob/shapematch/internal/shapes"
)

// IsComplete reports whether every shape sits exactly on the silhouette of
// the same kind. An empty board, or a shape without a silhouette, is not
// complete.
func IsComplete(shapeList []board.PlacedShape, silhouettes []board.PlacedSilhouette) bool {
	if len(shapeList) == 0 {
		return false
	}
	return Matched(shapeList, silhouettes) == len(shapeList)
}

// Matched counts shapes whose position equals their silhouette's.
func Matched(shapeList []board.PlacedShape, silhouettes []board.PlacedSilhouette) int {
	targets := make(map[shapes.Kind]board.Point, len(silhouettes))
	for _, s := range silhouettes {
		targets[s.Kind] = s.Pos
	}
	n := 0
	for _, s := range shapeList {
		if pos, ok := targets[s.Kind]; ok && pos == s.Pos {
			n++
		}
	}
	return n
}
