package watermark

import (
	"image"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/fogleman/gg"
)

// drawText renders plan onto its own gg context. A nil plan leaves the canvas untouched.
func (e *Engine) drawText(canvas image.Image, r Resolved, plan *TextPlan) image.Image {
	dc := gg.NewContextForImage(canvas)
	if plan == nil {
		return dc.Image()
	}

	x, y := float64(plan.Box.Min.X), float64(plan.Box.Min.Y)
	w, h := float64(plan.Box.Dx()), float64(plan.Box.Dy())
	radius := float64(plan.Radius)

	// подложка всегда под текстом
	switch r.Style {
	case model.StyleSolid:
		if r.Background.A > 0 {
			dc.DrawRoundedRectangle(x, y, w, h, radius)
			dc.SetColor(r.Background)
			dc.Fill()
		}
	case model.StyleOutline:
		if r.Border.A > 0 && plan.BorderWidth > 0 {
			dc.DrawRoundedRectangle(x, y, w, h, radius)
			dc.SetLineWidth(plan.BorderWidth)
			dc.SetColor(r.Border)
			dc.Stroke()
		}
	}

	if r.TextColor.A == 0 {
		return dc.Image()
	}

	face := e.fonts.Face(plan.FontFamily, plan.FontSize)
	defer face.Close()

	dc.SetFontFace(face)
	dc.SetColor(r.TextColor)
	cx := x + w/2
	for i, line := range plan.Lines {
		top := y + float64(plan.Padding) + float64(i)*plan.LineHeight
		dc.DrawStringAnchored(line, cx, top+plan.LineHeight/2, 0.5, 0.5)
	}

	return dc.Image()
}
