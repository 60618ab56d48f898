package watermark

import (
	"fmt"
	"math"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// OutputSize returns the canvas size and the geometry scale factor for the watermark.
// A scale other than 1 wins over a resize directive; with a directive the watermark is drawn unscaled.
func OutputSize(srcW, srcH int, out Output) (int, int, float64, error) {
	w, h, scale := srcW, srcH, 1.0

	switch {
	case out.Scale != 1:
		scale = out.Scale
		w = int(math.Round(float64(srcW) * scale))
		h = int(math.Round(float64(srcH) * scale))
	case out.Resize != nil:
		w, h = resizeTo(srcW, srcH, *out.Resize)
	}

	if w <= 0 || h <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: %dx%d", model.ErrInvalidOutputSize, w, h)
	}
	return w, h, scale, nil
}

func resizeTo(srcW, srcH int, d model.ResizeDirective) (int, int) {
	switch {
	case d.Width > 0 && d.Height > 0:
		return d.Width, d.Height
	case d.Width > 0:
		if d.MaintainAspectRatio {
			return d.Width, int(math.Round(float64(d.Width) * float64(srcH) / float64(srcW)))
		}
		return d.Width, srcH
	case d.Height > 0:
		if d.MaintainAspectRatio {
			return int(math.Round(float64(d.Height) * float64(srcW) / float64(srcH))), d.Height
		}
		return srcW, d.Height
	default:
		return srcW, srcH
	}
}
