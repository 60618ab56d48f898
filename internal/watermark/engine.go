// Package watermark composes a watermark layer (text or image) over a source image
// and shares its geometry with the preview overlay.
package watermark

import (
	"context"
	"fmt"
	"image"

	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
)

// Engine is stateless apart from the font registry and safe for concurrent use:
// every Composite call owns its render context and font face.
type Engine struct {
	fonts *FontRegistry
}

func NewEngine(fonts *FontRegistry) *Engine {
	return &Engine{fonts: fonts}
}

func (e *Engine) Fonts() *FontRegistry {
	return e.fonts
}

// Composite decodes src, scales it to the output size, draws the configured watermark and
// encodes the result as JPEG. assets are the watermark image candidates for the image kind.
func (e *Engine) Composite(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := Resolve(s.Watermark)
	if err != nil {
		return nil, err
	}
	out := ResolveOutput(s.Output)

	img, err := imageproc.Decode(src)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h, scale, err := OutputSize(b.Dx(), b.Dy(), out)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", src.Name, err)
	}

	canvas := imageproc.Fill(img, w, h)

	var result image.Image
	switch r.Kind {
	case model.KindImage:
		result, err = e.drawAsset(canvas, assets, r, scale)
		if err != nil {
			return nil, err
		}
	default:
		if missing := e.fonts.Missing(r.Text); len(missing) > 0 {
			logger.Warn().Str("file", src.Name).Str("runes", string(missing)).Msg("No registered font has glyphs for some runes, add a covering TTF to FONT_DIR")
		}
		result = e.drawText(canvas, r, PlanText(e.fonts, r, w, h, scale))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := imageproc.EncodeJPEG(result, out.Quality)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", src.Name, err)
	}

	logger.Debug().Str("file", src.Name).Int("width", w).Int("height", h).Int("bytes", len(data)).Msg("composite done")

	return &model.Composite{
		Name:        imageproc.WatermarkedName(src.Name, ".jpg"),
		ContentType: model.JPEG,
		Data:        data,
		Width:       w,
		Height:      h,
	}, nil
}

func (e *Engine) drawAsset(canvas image.Image, assets []model.SourceFile, r Resolved, scale float64) (image.Image, error) {
	idx := SelectAsset(r, len(assets))
	if idx < 0 {
		return canvas, nil
	}

	wm, err := imageproc.DecodeAsset(assets[idx])
	if err != nil {
		return nil, err
	}

	b := canvas.Bounds()
	plan := PlanImage(model.Size{Width: wm.Bounds().Dx(), Height: wm.Bounds().Dy()}, r, b.Dx(), b.Dy(), scale)
	if plan == nil {
		return canvas, nil
	}

	return imageproc.Overlay(canvas, wm, plan.Box.Dx(), plan.Box.Dy(), plan.Box.Min, r.ImageOpacity), nil
}
