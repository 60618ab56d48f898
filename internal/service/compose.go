package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/preview"
)

// размер длинной стороны для быстрого предпросмотра результата
const previewMaxSide = 800

// Watermark composites exactly one image and returns the encoded result.
func (c *WatermarkService) Watermark(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	switch n := len(req.Images); {
	case n == 0:
		return nil, model.ErrEmptySource
	case n > 1:
		return nil, fmt.Errorf("%w: single watermark accepts one image, got %d, use the batch endpoint", model.ErrTooManyFiles, n)
	}
	if err := c.validateRequest(&req); err != nil {
		return nil, err
	}

	res, err := c.engine.Composite(ctx, req.Images[0], req.Watermarks, req.Settings)
	if err != nil {
		logger.Warn().Err(err).Str("file", req.Images[0].Name).Msg("Failed to composite image")
		return nil, clientOr500(err)
	}
	return res, nil
}

// RenderPreview composites the image and shrinks the result for a quick look.
func (c *WatermarkService) RenderPreview(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error) {
	res, err := c.Watermark(ctx, req)
	if err != nil {
		return nil, err
	}

	quality := 0.8
	data, err := imageproc.Thumbnail(res.Data, previewMaxSide, quality)
	if err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Error().Err(err).Msg("Failed to shrink rendered preview")
		return nil, model.ErrCommon500
	}

	size, err := imageproc.Probe(data)
	if err != nil {
		return nil, model.ErrCommon500
	}

	res.Data = data
	res.Width, res.Height = size.Width, size.Height
	return res, nil
}

// Batch composites every image and returns the ZIP archive; one failed file fails the batch.
func (c *WatermarkService) Batch(ctx context.Context, req model.WatermarkRequest) ([]byte, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.validateRequest(&req); err != nil {
		return nil, err
	}

	data, err := c.batch.Build(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Int("files", len(req.Images)).Msg("Batch failed")
		return nil, clientOr500(err)
	}
	return data, nil
}

// Preview returns the overlay geometry for the displayed image.
func (c *WatermarkService) Preview(ctx context.Context, req preview.Request) (*preview.Overlay, error) {
	s := model.Settings{Watermark: req.Watermark, Output: req.Output}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	res, err := preview.Build(c.fonts, req)
	if err != nil {
		return nil, clientOr500(err)
	}
	return res, nil
}

// Probe returns natural dimensions of an uploaded image.
func (c *WatermarkService) Probe(ctx context.Context, f model.SourceFile) (model.Size, error) {
	if err := c.checkFile(f); err != nil {
		return model.Size{}, err
	}
	if err := imageproc.ValidateSource(f); err != nil {
		return model.Size{}, err
	}
	return imageproc.Probe(f.Data)
}

// FontFamilies lists registered font families.
func (c *WatermarkService) FontFamilies() []string {
	return c.fonts.Families()
}

// clientOr500 пропускает ошибки, которые понятны клиенту, остальное прячет за ErrCommon500
func clientOr500(err error) error {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return model.ErrCommon500
}

var clientErrors = []error{
	model.ErrInvalidInput,
	model.ErrDecode,
	model.ErrInvalidOutputSize,
	model.ErrEncode,
	model.ErrWatermarkAsset,
	model.ErrIncorrectConfig,
	model.ErrTooManyFiles,
	model.ErrFileTooLarge,
	model.ErrEmptySource,
	model.ErrIncorrectDisplay,
}
