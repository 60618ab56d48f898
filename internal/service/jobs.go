package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/google/uuid"
)

// CreateJob stores the batch inputs and queues it for the worker.
func (c *WatermarkService) CreateJob(ctx context.Context, req model.WatermarkRequest) (*model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.validateRequest(&req); err != nil {
		return nil, err
	}
	// битые файлы отсекаем до постановки в очередь
	for _, f := range req.Images {
		if err := imageproc.ValidateSource(f); err != nil {
			return nil, &model.FileError{Name: f.Name, Err: err}
		}
	}

	job := &model.Job{
		UID:        uuid.New(),
		Status:     model.StatusCreated,
		Settings:   req.Settings,
		Files:      make(model.StringSlice, 0, len(req.Images)),
		SourceKeys: make(model.StringSlice, 0, len(req.Images)),
		AssetKeys:  make(model.StringSlice, 0, len(req.Watermarks)),
	}

	// кладем в хранилище исходники и кандидатов-ватермарков
	for i, f := range req.Images {
		key := objectKey(srcKeyPrefix, job.UID, i, f)
		if err := c.putFile(ctx, key, f); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to save source image in Storage")
			return nil, model.ErrCommon500
		}
		job.Files = append(job.Files, f.Name)
		job.SourceKeys = append(job.SourceKeys, key)
	}
	for i, f := range req.Watermarks {
		key := objectKey(assetKeyPrefix, job.UID, i, f)
		if err := c.putFile(ctx, key, f); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to save watermark in Storage")
			return nil, model.ErrCommon500
		}
		job.AssetKeys = append(job.AssetKeys, key)
	}

	now := c.clock()
	job.CreatedAt = &now
	job.UpdatedAt = &now

	// шлем в базу
	if err := c.jobs.CreateJob(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to create job in DB")
		return nil, model.ErrCommon500
	}

	// кладем в очередь задач(в кафку)
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(job.UID.String()), nil); err != nil {
		logger.Error().Err(err).Str("job", job.UID.String()).Msg("Failed to publish job to task-queue")
		return nil, model.ErrCommon500
	}

	logger.Info().Str("job", job.UID.String()).Int("files", len(job.Files)).Msg("Job created")
	return job, nil
}

func (c *WatermarkService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, err // 404
		}
		logger.Error().Err(err).Str("job", id).Msg("Failed to fetch job from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

// LoadResult returns the archive of a finished job.
func (c *WatermarkService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.GetJob(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if res.Status != model.StatusDone || res.ResultKey == "" {
		return nil, "", model.ErrResultNotReady
	}

	// достаем из хранилища
	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		logger.Error().Err(err).Str("job", id).Msg("Failed to fetch result archive from Storage")
		return nil, "", model.ErrCommon500
	}
	if cType == "" {
		cType = model.ZIP
	}
	return data, cType, nil
}

func (c *WatermarkService) DeleteJob(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.GetJob(ctx, id)
	if err != nil {
		return err
	}

	// удаляем из базы
	if err := c.jobs.DeleteJob(ctx, id); err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return err
		}
		logger.Error().Err(err).Str("job", id).Msg("Failed to delete job from DB")
		return model.ErrCommon500
	}

	// удаляем из хранилища исходники, ватермарки и архив(если есть)
	keys := make([]string, 0, len(res.SourceKeys)+len(res.AssetKeys)+1)
	keys = append(keys, res.SourceKeys...)
	keys = append(keys, res.AssetKeys...)
	if res.ResultKey != "" {
		keys = append(keys, res.ResultKey)
	}
	for _, key := range keys {
		if err := c.storage.Delete(ctx, key); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to delete object from Storage")
			return model.ErrCommon500
		}
	}

	return nil
}

func (c *WatermarkService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}
	if !model.StatusMap[newStat] {
		return model.ErrIncorrectStatus
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.jobs.UpdateJobStatus(ctx, id, newStat); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return err // 404
		default:
			logger.Error().Err(err).Msg("Failed to update job status in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

func (c *WatermarkService) SaveResult(ctx context.Context, input *model.Job) error {
	logger := mwlogger.LoggerFromContext(ctx)
	t := c.clock()
	input.UpdatedAt = &t
	if err := c.jobs.SaveJobResult(ctx, input); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return err // 404
		default:
			logger.Error().Err(err).Msg("Failed to save job result in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// ReviveOrphans republishes jobs stuck in created/in_progress.
func (c *WatermarkService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.jobs.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Str("job", v).Msg("Failed to publish orphan to queue")
		}
	}
}

func (c *WatermarkService) putFile(ctx context.Context, key string, f model.SourceFile) error {
	ct := imageproc.DetectContentType(f.Data, f.ContentType)
	return c.storage.Put(ctx, key, int64(len(f.Data)), ct, bytes.NewReader(f.Data))
}
