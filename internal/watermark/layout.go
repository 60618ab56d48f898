package watermark

import (
	"image"
	"math"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

const (
	runesPerLine      = 12
	lineHeightRatio   = 1.2
	paddingUnit       = 9.33
	radiusUnit        = 6.0
	shrinkStep        = 2.0
	shrinkFloor       = 12.0
	maxTextWidthRatio = 0.8
	maxTextWidthCap   = 800.0
	assetMaxRatio     = 0.15
)

// TextPlan is the geometry of a text watermark on a canvas of a given size.
type TextPlan struct {
	FontFamily  string
	FontSize    float64
	Lines       []string
	LineWidths  []float64
	LineHeight  float64
	Padding     int
	Radius      int
	BorderWidth float64
	Box         image.Rectangle
}

// ImagePlan is the geometry of an image watermark on a canvas of a given size.
type ImagePlan struct {
	Width  float64
	Height float64
	Box    image.Rectangle
}

// WrapText режет строку на куски по runesPerLine символов без учета границ слов.
func WrapText(s string, n int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if n <= 0 {
		return []string{s}
	}

	lines := make([]string, 0, (len(runes)+n-1)/n)
	for start := 0; start < len(runes); start += n {
		end := min(start+n, len(runes))
		lines = append(lines, string(runes[start:end]))
	}
	return lines
}

// ScaledFontSize is the font size after output scaling: max(1, round(size*scale)).
func ScaledFontSize(size, scale float64) float64 {
	return math.Max(1, math.Round(size*scale))
}

// FitFontSize shrinks size in 2*scale steps while the unwrapped text is wider than
// min(80% of the canvas width, 800px), never going below 12*scale.
func FitFontSize(fonts *FontRegistry, family, text string, size, scale float64, canvasW int) float64 {
	limit := math.Min(float64(canvasW)*maxTextWidthRatio, maxTextWidthCap)
	floor := shrinkFloor * scale
	step := shrinkStep * scale

	for size > floor && fonts.Measure(family, size, text) > limit {
		size = math.Max(floor, size-step)
	}
	return size
}

// PlanText lays out a text watermark. It returns nil when there is nothing to draw.
func PlanText(fonts *FontRegistry, r Resolved, canvasW, canvasH int, scale float64) *TextPlan {
	if r.Text == "" {
		return nil
	}

	size := ScaledFontSize(r.FontSize, scale)
	size = FitFontSize(fonts, r.FontFamily, r.Text, size, scale, canvasW)

	face := fonts.Face(r.FontFamily, size)
	defer face.Close()

	lines := WrapText(r.Text, runesPerLine)
	widths := make([]float64, len(lines))
	textW := 0.0
	for i, l := range lines {
		widths[i] = fonts.measureWith(face, l)
		textW = math.Max(textW, widths[i])
	}

	lineHeight := size * lineHeightRatio
	padding := int(math.Round(paddingUnit * scale))
	boxW := int(math.Ceil(textW)) + 2*padding
	boxH := int(math.Ceil(lineHeight*float64(len(lines)))) + 2*padding

	at := Position(r.Anchor, boxW, boxH, canvasW, canvasH, scale, r.Margin)

	return &TextPlan{
		FontFamily:  r.FontFamily,
		FontSize:    size,
		Lines:       lines,
		LineWidths:  widths,
		LineHeight:  lineHeight,
		Padding:     padding,
		Radius:      int(math.Round(radiusUnit * scale)),
		BorderWidth: r.BorderWidth * scale,
		Box:         image.Rect(at.X, at.Y, at.X+boxW, at.Y+boxH),
	}
}

// ClampAssetSize fits the natural watermark size into 15% of the canvas short side,
// keeping proportions. Smaller watermarks are left as is.
func ClampAssetSize(assetW, assetH, canvasW, canvasH int) (float64, float64) {
	w, h := float64(assetW), float64(assetH)
	maxSide := float64(min(canvasW, canvasH)) * assetMaxRatio

	if w > maxSide || h > maxSide {
		ratio := math.Min(maxSide/w, maxSide/h)
		w *= ratio
		h *= ratio
	}
	return w, h
}

// PlanImage lays out an image watermark with natural size asset.
func PlanImage(asset model.Size, r Resolved, canvasW, canvasH int, scale float64) *ImagePlan {
	if asset.Width <= 0 || asset.Height <= 0 {
		return nil
	}

	w, h := ClampAssetSize(asset.Width, asset.Height, canvasW, canvasH)
	w *= r.SizeMultiplier
	h *= r.SizeMultiplier

	boxW := max(1, int(math.Round(w)))
	boxH := max(1, int(math.Round(h)))
	at := Position(r.Anchor, boxW, boxH, canvasW, canvasH, scale, r.Margin)

	return &ImagePlan{
		Width:  w,
		Height: h,
		Box:    image.Rect(at.X, at.Y, at.X+boxW, at.Y+boxH),
	}
}

// SelectAsset returns the index of the asset to draw or -1 when there is none.
func SelectAsset(r Resolved, count int) int {
	if count == 0 {
		return -1
	}
	if r.AssetIndex >= 0 && r.AssetIndex < count {
		return r.AssetIndex
	}
	return 0
}
