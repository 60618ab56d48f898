// Package service provides business-logic for the app
package service

import (
	"context"
	"io"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/watermark"
	"github.com/wb-go/wbf/retry"
)

type WatermarkService struct {
	engine    Compositor
	batch     BatchBuilder
	fonts     *watermark.FontRegistry
	jobs      repository.JobRepo
	presets   repository.PresetRepo
	recent    repository.RecentRepo
	publisher TaskPublisher
	storage   BlobStorage
	limits    Limits
	now       func() time.Time
}

// Limits - ограничения на загрузку; нули означают встроенные значения
type Limits struct {
	MaxFileSize int64
	MaxFiles    int
	RecentTTL   time.Duration
}

func NewWatermarkService(engine Compositor, batch BatchBuilder, fonts *watermark.FontRegistry, repo repository.Repo, pub TaskPublisher, strg BlobStorage, limits Limits) *WatermarkService {
	return &WatermarkService{
		engine:    engine,
		batch:     batch,
		fonts:     fonts,
		jobs:      repo,
		presets:   repo,
		recent:    repo,
		publisher: pub,
		storage:   strg,
		limits:    limits.withDefaults(),
		now:       time.Now,
	}
}

// Compositor - контракт движка наложения
type Compositor interface {
	Composite(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error)
}

// BatchBuilder - контракт пакетной обработки в ZIP
type BatchBuilder interface {
	Build(ctx context.Context, req model.WatermarkRequest) ([]byte, error)
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// BlobStorage - контракт для работы с хранилищем
type BlobStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Стратегия ретрая отправки в очередь
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileSize <= 0 || l.MaxFileSize > model.MaxFileSize {
		l.MaxFileSize = model.MaxFileSize
	}
	if l.MaxFiles <= 0 || l.MaxFiles > model.MaxFilesCount {
		l.MaxFiles = model.MaxFilesCount
	}
	if l.RecentTTL <= 0 {
		l.RecentTTL = model.RecentTTL
	}
	return l
}

func (c *WatermarkService) clock() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}
