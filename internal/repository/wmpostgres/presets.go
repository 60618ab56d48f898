package wmpostgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// CreatePreset вставляет пресет; конфликт по имени отдается как ErrDuplicatePreset
func (p PostgresRepo) CreatePreset(ctx context.Context, ps *model.Preset) error {
	query := `INSERT INTO presets (preset_uid, name, config, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (name) DO NOTHING
	RETURNING preset_uid`

	var id string
	err := p.DB.QueryRowContext(ctx, query, ps.ID, ps.Name, ps.Config, ps.CreatedAt).Scan(&id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.ErrDuplicatePreset // 409
		default:
			return err
		}
	}
	return nil
}

func (p PostgresRepo) ListPresets(ctx context.Context) ([]model.Preset, error) {
	query := `SELECT preset_uid, name, config, created_at
	FROM presets
	ORDER BY created_at DESC`

	rows, err := p.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	presets := make([]model.Preset, 0)
	for rows.Next() {
		var ps model.Preset
		if err := rows.Scan(&ps.ID, &ps.Name, &ps.Config, &ps.CreatedAt); err != nil {
			return nil, err
		}
		presets = append(presets, ps)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return presets, nil
}

func (p PostgresRepo) DeletePreset(ctx context.Context, id string) error {
	query := `DELETE FROM presets WHERE preset_uid = $1`

	res, err := p.DB.Master.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, model.ErrPresetNotFound)
}
