package service

import (
	"context"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
)

// SaveRecent remembers the configuration in the client's history: the newest RecentLimit
// distinct configurations younger than the TTL are kept.
func (c *WatermarkService) SaveRecent(ctx context.Context, clientID string, cfg model.WatermarkConfig) error {
	logger := mwlogger.LoggerFromContext(ctx)

	clientID, err := normalizeClientID(clientID)
	if err != nil {
		return err
	}
	s := model.Settings{Watermark: cfg}
	if err := s.Validate(); err != nil {
		return err
	}

	fp, err := fingerprint(cfg)
	if err != nil {
		return model.ErrIncorrectConfig
	}

	now := c.clock()
	if err := c.recent.SaveRecent(ctx, clientID, fp, cfg, now); err != nil {
		logger.Error().Err(err).Msg("Failed to save recent config in DB")
		return model.ErrCommon500
	}

	// чистка не критична для ответа клиенту
	if err := c.recent.TrimRecent(ctx, clientID, now.Add(-c.limits.RecentTTL), model.RecentLimit); err != nil {
		logger.Warn().Err(err).Msg("Failed to trim recent configs")
	}
	return nil
}

func (c *WatermarkService) ListRecent(ctx context.Context, clientID string) ([]model.RecentConfig, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	clientID, err := normalizeClientID(clientID)
	if err != nil {
		return nil, err
	}

	res, err := c.recent.ListRecent(ctx, clientID, c.clock().Add(-c.limits.RecentTTL), model.RecentLimit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch recent configs from DB")
		return nil, model.ErrCommon500
	}
	return res, nil
}
