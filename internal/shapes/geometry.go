package shapes

// Geometry describes the board: one column of draggable shapes, one
// column of silhouettes, and N rows ("slots") shared by both.
type Geometry struct {
	ShapeSize         float64 `json:"shapeSize"`
	ShapeColumnX      float64 `json:"shapeColumnX"`
	SilhouetteColumnX float64 `json:"silhouetteColumnX"`
	VerticalSpacing   float64 `json:"verticalSpacing"`
	TopPadding        float64 `json:"topPadding"`
	CanvasWidth       float64 `json:"canvasWidth"`
	CanvasHeight      float64 `json:"canvasHeight"`
}

// DefaultGeometry returns the stock board dimensions.
func DefaultGeometry() Geometry {
	return Geometry{
		ShapeSize:         100,
		ShapeColumnX:      150,
		SilhouetteColumnX: 700,
		VerticalSpacing:   40,
		TopPadding:        50,
		CanvasWidth:       960,
		CanvasHeight:      800,
	}
}

// SlotY is the vertical offset of slot i.
func (g Geometry) SlotY(i int) float64 {
	return g.TopPadding + float64(i)*(g.ShapeSize+g.VerticalSpacing)
}

const (
	SilhouetteColor  = "black"
	BlueprintFill    = "white"
	BlueprintOpacity = 0.25
)

// Style is how silhouettes and blueprints are painted.
type Style struct {
	SilhouetteColor  string  `json:"silhouetteColor"`
	BlueprintFill    string  `json:"blueprintFill"`
	BlueprintOpacity float64 `json:"blueprintOpacity"`
}

// DefaultStyle returns the board's silhouette and blueprint paint.
func DefaultStyle() Style {
	return Style{
		SilhouetteColor:  SilhouetteColor,
		BlueprintFill:    BlueprintFill,
		BlueprintOpacity: BlueprintOpacity,
	}
}

// Palette returns the colors dealt to draggable shapes. Colors carry no
// matching meaning.
func Palette() []string {
	return []string{"red", "pink", "orange", "yellow", "cyan", "blue", "green", "gray"}
}
