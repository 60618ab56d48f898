package imageproc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

// Thumbnail уменьшает готовый JPEG так, чтобы большая сторона не превышала maxSide.
// Картинки меньше лимита возвращаются без перекодирования.
func Thumbnail(data []byte, maxSide int, quality float64) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image provided to Thumbnail")
	}
	if maxSide <= 0 {
		return nil, fmt.Errorf("incorrect thumbnail size %d", maxSide)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to DEcode image in Thumbnail: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return data, nil
	}

	thumb := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	return EncodeJPEG(thumb, quality)
}
