package wmpostgres

import (
	"context"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// SaveRecent upserts the configuration by its fingerprint, so repeating a config only refreshes saved_at.
func (p PostgresRepo) SaveRecent(ctx context.Context, clientID, fingerprint string, cfg model.WatermarkConfig, savedAt time.Time) error {
	query := `INSERT INTO recent_configs (client_id, fingerprint, config, saved_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (client_id, fingerprint) DO UPDATE SET config = EXCLUDED.config, saved_at = EXCLUDED.saved_at`

	_, err := p.DB.Master.ExecContext(ctx, query, clientID, fingerprint, cfg, savedAt)
	return err
}

func (p PostgresRepo) ListRecent(ctx context.Context, clientID string, since time.Time, limit int) ([]model.RecentConfig, error) {
	query := `SELECT config, saved_at
	FROM recent_configs
	WHERE client_id = $1 AND saved_at > $2
	ORDER BY saved_at DESC
	LIMIT $3`

	rows, err := p.DB.QueryContext(ctx, query, clientID, since, limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	res := make([]model.RecentConfig, 0, limit)
	for rows.Next() {
		var rc model.RecentConfig
		if err := rows.Scan(&rc.Config, &rc.SavedAt); err != nil {
			return nil, err
		}
		res = append(res, rc)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return res, nil
}

// TrimRecent drops expired rows of the client and everything beyond the newest keep entries.
func (p PostgresRepo) TrimRecent(ctx context.Context, clientID string, since time.Time, keep int) error {
	query := `DELETE FROM recent_configs
	WHERE client_id = $1
	AND (saved_at <= $2 OR fingerprint NOT IN (
		SELECT fingerprint FROM recent_configs
		WHERE client_id = $1
		ORDER BY saved_at DESC
		LIMIT $3))`

	_, err := p.DB.Master.ExecContext(ctx, query, clientID, since, keep)
	return err
}
