// Package wmpostgres keeps batch jobs, presets and recent configurations in PostgreSQL
package wmpostgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) CreateJob(ctx context.Context, j *model.Job) error {
	query := `INSERT INTO jobs (job_uid, status, files, source_keys, asset_keys, settings, result_key, err_msg, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := p.DB.Master.ExecContext(ctx, query, j.UID, j.Status, j.Files, j.SourceKeys, j.AssetKeys, j.Settings, j.ResultKey, j.ErrMsg, j.CreatedAt, j.CreatedAt)
	return err
}

func (p PostgresRepo) GetJob(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT job_uid, status, files, source_keys, asset_keys, settings, result_key, err_msg, created_at, updated_at
	FROM jobs
	WHERE job_uid = $1`
	var job model.Job

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&job.UID,
		&job.Status,
		&job.Files,
		&job.SourceKeys,
		&job.AssetKeys,
		&job.Settings,
		&job.ResultKey,
		&job.ErrMsg,
		&job.CreatedAt,
		&job.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrJobNotFound
		default:
			return nil, err // 500
		}
	}
	return &job, nil
}

func (p PostgresRepo) DeleteJob(ctx context.Context, id string) error {
	query := `DELETE FROM jobs
	WHERE job_uid = $1`

	res, err := p.DB.Master.ExecContext(ctx, query, id)
	if err != nil {
		return err // 500
	}
	return affectedOrNotFound(res, model.ErrJobNotFound)
}

func (p PostgresRepo) UpdateJobStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE jobs SET status = $1, updated_at = now() WHERE job_uid = $2`

	res, err := p.DB.Master.ExecContext(ctx, query, newStat, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, model.ErrJobNotFound)
}

// SaveJobResult пишет финальный статус, ключ архива и ошибки одним апдейтом
func (p PostgresRepo) SaveJobResult(ctx context.Context, j *model.Job) error {
	query := `UPDATE jobs SET status = $1, updated_at = $2, result_key = $3, err_msg = $4 WHERE job_uid = $5`

	res, err := p.DB.Master.ExecContext(ctx, query, j.Status, j.UpdatedAt, j.ResultKey, j.ErrMsg, j.UID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, model.ErrJobNotFound)
}

// FetchOrphans returns jobs stuck in created/in_progress for longer than model.OrphanTimeout.
func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT job_uid
	FROM jobs
	WHERE status IN ($1, $2)
	AND updated_at < $3
	LIMIT $4`

	staleBefore := time.Now().Add(-model.OrphanTimeout)
	rows, err := p.DB.QueryContext(ctx, query, model.StatusCreated, model.StatusInProgress, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

func affectedOrNotFound(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound // 404
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
	}
}
