// Package worker consumes batch jobs from the queue, watermarks them and stores the ZIP archive
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/service"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// NoopPublisher - ЗАГЛУШКА, функциональность настоящего паблишера в очередь не нужна в рамках работы воркера
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, k []byte, v []byte) error {
	return nil
}

type JobWorkerService interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, res *model.Job) error
}

type BatchBuilder interface {
	Build(ctx context.Context, req model.WatermarkRequest) ([]byte, error)
}

// Committer - подтверждение обработанного сообщения (wbf kafka consumer)
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	storage   service.BlobStorage
	service   JobWorkerService
	batch     BatchBuilder
	queue     <-chan kafkago.Message
	committer Committer
	logger    zlog.Zerolog
	now       func() time.Time
}

func NewWorkerInstance(strg service.BlobStorage, svc JobWorkerService, batch BatchBuilder, q <-chan kafkago.Message, cons Committer) *Worker {
	return &Worker{
		storage:   strg,
		service:   svc,
		batch:     batch,
		queue:     q,
		committer: cons,
		logger:    zlog.Logger.With().Str("component", "worker").Logger(),
		now:       time.Now,
	}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				w.logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			id := string(msg.Key)
			// логгер задачи уходит в сервисный слой через контекст
			jobCtx := mwlogger.WithLogger(ctx, w.logger.With().Str("job", id).Logger())
			if err := w.initProcessor(jobCtx, id); err != nil && !errors.Is(err, model.ErrJobNotFound) {
				// не коммитим: задачу подберет ReviveOrphans или повторная доставка
				w.logger.Error().Err(err).Str("job", id).Msg("Task failed")
				continue
			}
			if err := w.committer.Commit(ctx, msg); err != nil {
				w.logger.Error().Err(err).Str("job", id).Msg("Failed to commit queue-message")
			}
		}
	}
}

// initProcessor returns an error only when the job state could not be persisted;
// a failed batch is recorded in the job itself.
func (w *Worker) initProcessor(ctx context.Context, id string) error {
	// считать из базы задачу
	job, err := w.service.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("worker failed to fetch job %q from DB: %w", id, err)
	}
	// проверить статус
	switch job.Status {
	case model.StatusDone, model.StatusFailed:
		return nil
	case model.StatusInProgress:
		if job.UpdatedAt == nil || w.now().Sub(*job.UpdatedAt) < model.OrphanTimeout {
			return fmt.Errorf("job %q is already in progress", id)
		}
		// прошлый воркер не дожил до конца обработки - забираем задачу
		w.logger.Warn().Str("job", id).Time("updated_at", *job.UpdatedAt).Msg("Taking over stale in_progress job")
	}

	// обновить статус
	if err := w.service.UpdateStatus(ctx, id, model.StatusInProgress); err != nil {
		return fmt.Errorf("failed to update status of job %q to `in_progress` in DB: %w", id, err)
	}

	// выполняем саму обработку
	if pErr := w.processTask(ctx, job); pErr != nil {
		w.logger.Warn().Err(pErr).Str("job", id).Msg("Job failed")

		job.Status = model.StatusFailed
		job.ErrMsg = append(job.ErrMsg, pErr.Error())
		if uErr := w.service.SaveResult(ctx, job); uErr != nil {
			return fmt.Errorf("failed to set status of job %q to `failed` in DB: %w \nAFTER\n error while processing job: %w", id, uErr, pErr)
		}
	}

	return nil
}

func (w *Worker) processTask(ctx context.Context, job *model.Job) error {
	req, err := w.loadRequest(ctx, job)
	if err != nil {
		return err
	}

	// пачка целиком или ничего
	archive, err := w.batch.Build(ctx, req)
	if err != nil {
		return err
	}

	resKey := service.ResultKey(job.UID)
	if err := w.storage.Put(ctx, resKey, int64(len(archive)), model.ZIP, bytes.NewReader(archive)); err != nil {
		return fmt.Errorf("worker failed to put archive to storage: %w", err)
	}

	job.Status = model.StatusDone
	job.ResultKey = resKey

	// обновить запись в БД
	if err := w.service.SaveResult(ctx, job); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}
	return nil
}

// loadRequest достает из storage исходники и ватермарки задачи
func (w *Worker) loadRequest(ctx context.Context, job *model.Job) (model.WatermarkRequest, error) {
	req := model.WatermarkRequest{
		Settings:   job.Settings,
		Images:     make([]model.SourceFile, 0, len(job.SourceKeys)),
		Watermarks: make([]model.SourceFile, 0, len(job.AssetKeys)),
	}

	for i, key := range job.SourceKeys {
		name := key
		if i < len(job.Files) {
			name = job.Files[i]
		}
		f, err := w.fetch(ctx, key, name)
		if err != nil {
			return req, &model.FileError{Name: name, Err: err}
		}
		req.Images = append(req.Images, f)
	}

	for _, key := range job.AssetKeys {
		f, err := w.fetch(ctx, key, key)
		if err != nil {
			return req, fmt.Errorf("worker failed to fetch watermark %q: %w", key, err)
		}
		req.Watermarks = append(req.Watermarks, f)
	}

	return req, nil
}

func (w *Worker) fetch(ctx context.Context, key, name string) (model.SourceFile, error) {
	r, ct, err := w.storage.Get(ctx, key)
	if err != nil {
		return model.SourceFile{}, err
	}
	defer closeFileFlow(r)

	data, err := io.ReadAll(r)
	if err != nil {
		return model.SourceFile{}, err
	}
	return model.SourceFile{Name: name, ContentType: ct, Data: data}, nil
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Worker failed to close fileflow")
	}
}
