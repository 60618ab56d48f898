package service

import (
	"context"
	"errors"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/watermark"
	"github.com/google/uuid"
)

func (c *WatermarkService) ListPresets(ctx context.Context) ([]model.Preset, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.presets.ListPresets(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch presets from DB")
		return nil, model.ErrCommon500
	}
	return res, nil
}

func (c *WatermarkService) CreatePreset(ctx context.Context, p *model.Preset) (*model.Preset, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	// пресет должен резолвиться так же, как при наложении
	if _, err := watermark.Resolve(p.Config); err != nil {
		return nil, err
	}

	p.ID = uuid.New()
	now := c.clock()
	p.CreatedAt = &now

	if err := c.presets.CreatePreset(ctx, p); err != nil {
		if errors.Is(err, model.ErrDuplicatePreset) {
			return nil, err // 409
		}
		logger.Error().Err(err).Msg("Failed to create preset in DB")
		return nil, model.ErrCommon500
	}
	return p, nil
}

func (c *WatermarkService) DeletePreset(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	if err := c.presets.DeletePreset(ctx, id); err != nil {
		if errors.Is(err, model.ErrPresetNotFound) {
			return err // 404
		}
		logger.Error().Err(err).Msg("Failed to delete preset from DB")
		return model.ErrCommon500
	}
	return nil
}

// BuiltinPresets returns the ready-made captions as text watermark configs.
func (c *WatermarkService) BuiltinPresets() []model.Preset {
	res := make([]model.Preset, 0, len(model.BuiltinTexts))
	for _, text := range model.BuiltinTexts {
		res = append(res, model.Preset{
			ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(text)),
			Name:   text,
			Config: model.WatermarkConfig{Kind: model.KindText, Text: text},
		})
	}
	return res
}
