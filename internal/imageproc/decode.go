// Package imageproc provides low-level raster operations for the watermark engine:
// content-type checks, decoding, scaling and JPEG encoding.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	// регистрируем декодеры webp и bmp для image.Decode
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// DetectContentType returns declared content type if it is meaningful, otherwise sniffs the payload.
func DetectContentType(data []byte, declared string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return mimetype.Detect(data).String()
}

// ValidateSource checks that the file is non-empty and has an allowed MIME type.
func ValidateSource(f model.SourceFile) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %q is empty", model.ErrInvalidInput, f.Name)
	}
	ct := DetectContentType(f.Data, f.ContentType)
	if !model.AcceptedTypes[ct] {
		return fmt.Errorf("%w: %q has unsupported type %q", model.ErrInvalidInput, f.Name, ct)
	}
	return nil
}

// Decode validates and decodes a source image.
func Decode(f model.SourceFile) (image.Image, error) {
	if err := ValidateSource(f); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(f.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrDecode, f.Name, err)
	}
	if img.Bounds().Dx() <= 0 || img.Bounds().Dy() <= 0 {
		return nil, fmt.Errorf("%w: %q has zero dimensions", model.ErrDecode, f.Name)
	}
	return img, nil
}

// DecodeAsset decodes a watermark image, keeping its alpha channel.
func DecodeAsset(f model.SourceFile) (image.Image, error) {
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: %q is empty", model.ErrWatermarkAsset, f.Name)
	}

	img, err := imaging.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrWatermarkAsset, f.Name, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %q has zero dimensions", model.ErrWatermarkAsset, f.Name)
	}
	return img, nil
}

// Probe reads only the header of the image and returns its natural size.
func Probe(data []byte) (model.Size, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Size{}, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return model.Size{}, fmt.Errorf("%w: zero dimensions", model.ErrDecode)
	}
	return model.Size{Width: cfg.Width, Height: cfg.Height}, nil
}
