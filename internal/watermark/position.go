package watermark

import (
	"image"
	"math"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// Position returns the top-left corner of a box anchored to one of the canvas corners.
// Coordinates are not clamped: an oversized box may start at negative offsets.
func Position(anchor model.Anchor, boxW, boxH, canvasW, canvasH int, scale, margin float64) image.Point {
	m := int(math.Round(margin * scale))

	switch anchor {
	case model.TopRight:
		return image.Pt(canvasW-boxW-m, m)
	case model.BottomLeft:
		return image.Pt(m, canvasH-boxH-m)
	case model.BottomRight:
		return image.Pt(canvasW-boxW-m, canvasH-boxH-m)
	default:
		return image.Pt(m, m)
	}
}
