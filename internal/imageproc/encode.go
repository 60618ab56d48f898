package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
)

// JPEGQuality maps a 0..1 fraction onto the encoder's 1..100 scale.
func JPEGQuality(fraction float64) int {
	q := int(math.Round(fraction * 100))
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// EncodeJPEG serializes the canvas as a single lossy raster.
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality(quality))); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEncode, err)
	}
	if buf.Len() == 0 {
		return nil, model.ErrEncode
	}
	return buf.Bytes(), nil
}

// WatermarkedName строит имя для скачивания: photo.png -> photo_watermarked.png.
// Пустой ext означает сохранить расширение оригинала.
func WatermarkedName(original, ext string) string {
	base := filepath.Base(original)
	origExt := filepath.Ext(base)
	name := strings.TrimSuffix(base, origExt)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "image"
	}
	if ext == "" {
		ext = origExt
	}
	if ext == "" {
		ext = ".jpg"
	}
	return name + model.WatermarkedLabel + ext
}
