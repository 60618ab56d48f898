package imageproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// Fill растягивает исходник ровно на холст w×h: без обрезки и без полей.
func Fill(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

// Overlay рисует ватермарк поверх основы с сохранением его собственной прозрачности;
// opacity применяется только к этой отрисовке.
func Overlay(base image.Image, wm image.Image, w, h int, at image.Point, opacity float64) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return imaging.Clone(base)
	}
	b := wm.Bounds()
	if b.Dx() != w || b.Dy() != h {
		wm = imaging.Resize(wm, w, h, imaging.Lanczos)
	}
	return imaging.Overlay(base, wm, at, opacity)
}
