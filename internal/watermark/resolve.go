package watermark

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// Значения по умолчанию; общие для рендера и превью.
const (
	DefaultFontFamily  = "Roboto"
	DefaultFontSize    = 24.0
	DefaultMargin      = 15.0
	DefaultOpacity     = 100.0
	DefaultBorderWidth = 2.0
	DefaultSize        = 1.0
	DefaultQuality     = 1.0
	DefaultScale       = 1.0
	DefaultTextColor   = "#ffffff"
	DefaultBoxColor    = "#000000"
)

// Resolved is a watermark configuration with every default applied and colors parsed.
type Resolved struct {
	Kind model.WatermarkKind

	Text        string
	FontFamily  string
	FontSize    float64
	TextColor   color.NRGBA
	Style       model.BackgroundStyle
	Background  color.NRGBA
	Border      color.NRGBA
	BorderWidth float64

	AssetIndex     int
	SizeMultiplier float64
	ImageOpacity   float64

	Anchor model.Anchor
	Margin float64
}

// Output is a resolved OutputConfig.
type Output struct {
	Quality float64
	Scale   float64
	Resize  *model.ResizeDirective
}

// Resolve fills every unset field of cfg. It is the single source of defaults.
func Resolve(cfg model.WatermarkConfig) (Resolved, error) {
	r := Resolved{
		Kind:           cfg.Kind,
		Text:           cfg.Text,
		FontFamily:     cfg.FontFamily,
		FontSize:       valueOr(cfg.FontSize, DefaultFontSize),
		Style:          cfg.BorderStyle,
		BorderWidth:    valueOr(cfg.BorderWidth, DefaultBorderWidth),
		SizeMultiplier: valueOr(cfg.WatermarkSize, DefaultSize),
		ImageOpacity:   clampPercent(valueOr(cfg.ImageOpacity, DefaultOpacity)) / 100,
		Anchor:         cfg.Position,
		Margin:         valueOr(cfg.Margin, DefaultMargin),
	}

	if r.Kind == "" {
		r.Kind = model.KindText
	}
	if r.Kind != model.KindText && r.Kind != model.KindImage {
		return Resolved{}, fmt.Errorf("%w: unknown watermark type %q", model.ErrIncorrectConfig, r.Kind)
	}
	if strings.TrimSpace(r.FontFamily) == "" {
		r.FontFamily = DefaultFontFamily
	}
	if r.Style == "" {
		r.Style = model.StyleNone
	}
	if r.Anchor == "" {
		r.Anchor = model.TopLeft
	}
	if cfg.SelectedWatermarkIndex != nil && *cfg.SelectedWatermarkIndex >= 0 {
		r.AssetIndex = *cfg.SelectedWatermarkIndex
	}

	var err error
	if r.TextColor, err = parseColor(cfg.TextColor, DefaultTextColor, valueOr(cfg.TextOpacity, DefaultOpacity)); err != nil {
		return Resolved{}, err
	}
	if r.Background, err = parseColor(cfg.BackgroundColor, DefaultBoxColor, valueOr(cfg.BackgroundOpacity, DefaultOpacity)); err != nil {
		return Resolved{}, err
	}
	if r.Border, err = parseColor(cfg.BorderColor, DefaultBoxColor, valueOr(cfg.BorderOpacity, DefaultOpacity)); err != nil {
		return Resolved{}, err
	}

	return r, nil
}

// ResolveOutput fills defaults of the output configuration.
func ResolveOutput(cfg model.OutputConfig) Output {
	return Output{
		Quality: math.Min(1, math.Max(0, valueOr(cfg.Quality, DefaultQuality))),
		Scale:   valueOr(cfg.Scale, DefaultScale),
		Resize:  cfg.Resize,
	}
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clampPercent(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func alpha(percent float64) uint8 {
	return uint8(math.Round(clampPercent(percent) * 255 / 100))
}

// parseColor понимает #rgb, #rgba, #rrggbb и #rrggbbaa; альфа из строки умножается на opacity.
func parseColor(s, def string, opacity float64) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = def
	}
	hex := strings.TrimPrefix(s, "#")

	if len(hex) == 3 || len(hex) == 4 {
		var b strings.Builder
		for _, ch := range hex {
			b.WriteRune(ch)
			b.WriteRune(ch)
		}
		hex = b.String()
	}
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("%w: bad color %q", model.ErrIncorrectConfig, s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: bad color %q", model.ErrIncorrectConfig, s)
	}

	a := alpha(opacity)
	if len(hex) == 8 {
		a = uint8(math.Round(float64(a) * float64(v&0xff) / 255))
		v >>= 8
	}

	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: a}, nil
}
