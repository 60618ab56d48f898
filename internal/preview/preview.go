// Package preview describes the watermark overlay as CSS-ready geometry so that
// the on-screen preview matches the composited output.
package preview

import (
	"fmt"
	"image/color"
	"math"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/watermark"
)

// Request - то, что знает клиент о показанной картинке
type Request struct {
	Watermark model.WatermarkConfig `json:"watermark"`
	Output    model.OutputConfig    `json:"output"`
	// натуральный размер исходника
	Natural model.Size `json:"natural"`
	// отношение экранного размера к натуральному
	DisplayScale float64 `json:"displayScale"`
	// натуральные размеры кандидатов-ватермарков в порядке загрузки
	Assets []model.Size `json:"assets,omitempty"`
}

// Overlay is the watermark box in display pixels, relative to the top-left corner of the displayed image.
type Overlay struct {
	Kind    model.WatermarkKind `json:"type"`
	Visible bool                `json:"visible"`

	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Padding      float64               `json:"padding,omitempty"`
	BorderRadius float64               `json:"borderRadius,omitempty"`
	BorderStyle  model.BackgroundStyle `json:"borderStyle,omitempty"`
	BorderWidth  float64               `json:"borderWidth,omitempty"`
	BorderColor  string                `json:"borderColor,omitempty"`
	Background   string                `json:"backgroundColor,omitempty"`

	FontFamily string   `json:"fontFamily,omitempty"`
	FontSize   float64  `json:"fontSize,omitempty"`
	LineHeight float64  `json:"lineHeight,omitempty"`
	Lines      []string `json:"lines,omitempty"`
	Color      string   `json:"color,omitempty"`

	AssetIndex int     `json:"assetIndex"`
	Opacity    float64 `json:"opacity"`

	// размер итогового файла, чтобы показать его рядом с превью
	Output model.Size `json:"output"`
}

// Build runs the engine's planning code on the output canvas and maps the result onto the displayed image.
func Build(fonts *watermark.FontRegistry, req Request) (*Overlay, error) {
	if req.Natural.Width <= 0 || req.Natural.Height <= 0 || req.DisplayScale <= 0 || math.IsInf(req.DisplayScale, 0) {
		return nil, model.ErrIncorrectDisplay
	}

	r, err := watermark.Resolve(req.Watermark)
	if err != nil {
		return nil, err
	}

	w, h, scale, err := watermark.OutputSize(req.Natural.Width, req.Natural.Height, watermark.ResolveOutput(req.Output))
	if err != nil {
		return nil, err
	}

	// холст движка -> экран
	kx := req.DisplayScale * float64(req.Natural.Width) / float64(w)
	ky := req.DisplayScale * float64(req.Natural.Height) / float64(h)

	res := &Overlay{
		Kind:       r.Kind,
		AssetIndex: -1,
		Opacity:    1,
		Output:     model.Size{Width: w, Height: h},
	}

	switch r.Kind {
	case model.KindImage:
		idx := watermark.SelectAsset(r, len(req.Assets))
		if idx < 0 {
			return res, nil
		}
		plan := watermark.PlanImage(req.Assets[idx], r, w, h, scale)
		if plan == nil {
			return res, nil
		}
		res.Visible = true
		res.AssetIndex = idx
		res.Opacity = r.ImageOpacity
		res.placeBox(plan.Box.Min.X, plan.Box.Min.Y, plan.Box.Dx(), plan.Box.Dy(), kx, ky)

	default:
		plan := watermark.PlanText(fonts, r, w, h, scale)
		if plan == nil {
			return res, nil
		}
		res.Visible = true
		res.placeBox(plan.Box.Min.X, plan.Box.Min.Y, plan.Box.Dx(), plan.Box.Dy(), kx, ky)
		res.Padding = float64(plan.Padding) * kx
		res.BorderRadius = float64(plan.Radius) * kx
		res.BorderStyle = r.Style
		res.FontFamily = r.FontFamily
		res.FontSize = plan.FontSize * kx
		res.LineHeight = plan.LineHeight * kx
		res.Lines = plan.Lines
		res.Color = CSSColor(r.TextColor)

		switch r.Style {
		case model.StyleSolid:
			res.Background = CSSColor(r.Background)
		case model.StyleOutline:
			res.BorderWidth = plan.BorderWidth * kx
			res.BorderColor = CSSColor(r.Border)
		}
	}

	return res, nil
}

func (o *Overlay) placeBox(x, y, w, h int, kx, ky float64) {
	o.Left = float64(x) * kx
	o.Top = float64(y) * ky
	o.Width = float64(w) * kx
	o.Height = float64(h) * ky
}

// CSSColor formats c as rgba(r, g, b, a).
func CSSColor(c color.NRGBA) string {
	return fmt.Sprintf("rgba(%d, %d, %d, %.3f)", c.R, c.G, c.B, float64(c.A)/255)
}
