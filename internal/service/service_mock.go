package service

import (
	"context"
	"io"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK RESPOSITORY

type mockRepo struct {
	createJobFn    func(ctx context.Context, j *model.Job) error
	getJobFn       func(ctx context.Context, id string) (*model.Job, error)
	deleteJobFn    func(ctx context.Context, id string) error
	updateStatusFn func(ctx context.Context, id string, st model.Status) error
	saveResultFn   func(ctx context.Context, j *model.Job) error
	fetchOrphansFn func(ctx context.Context, limit int) ([]string, error)

	createPresetFn func(ctx context.Context, p *model.Preset) error
	listPresetsFn  func(ctx context.Context) ([]model.Preset, error)
	deletePresetFn func(ctx context.Context, id string) error

	saveRecentFn func(ctx context.Context, clientID, fp string, cfg model.WatermarkConfig, at time.Time) error
	listRecentFn func(ctx context.Context, clientID string, since time.Time, limit int) ([]model.RecentConfig, error)
	trimRecentFn func(ctx context.Context, clientID string, since time.Time, keep int) error
}

func (m *mockRepo) CreateJob(ctx context.Context, j *model.Job) error {
	return m.createJobFn(ctx, j)
}

func (m *mockRepo) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return m.getJobFn(ctx, id)
}

func (m *mockRepo) DeleteJob(ctx context.Context, id string) error {
	return m.deleteJobFn(ctx, id)
}

func (m *mockRepo) UpdateJobStatus(ctx context.Context, id string, st model.Status) error {
	return m.updateStatusFn(ctx, id, st)
}

func (m *mockRepo) SaveJobResult(ctx context.Context, j *model.Job) error {
	return m.saveResultFn(ctx, j)
}

func (m *mockRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	return m.fetchOrphansFn(ctx, limit)
}

func (m *mockRepo) CreatePreset(ctx context.Context, p *model.Preset) error {
	return m.createPresetFn(ctx, p)
}

func (m *mockRepo) ListPresets(ctx context.Context) ([]model.Preset, error) {
	return m.listPresetsFn(ctx)
}

func (m *mockRepo) DeletePreset(ctx context.Context, id string) error {
	return m.deletePresetFn(ctx, id)
}

func (m *mockRepo) SaveRecent(ctx context.Context, clientID, fp string, cfg model.WatermarkConfig, at time.Time) error {
	return m.saveRecentFn(ctx, clientID, fp, cfg, at)
}

func (m *mockRepo) ListRecent(ctx context.Context, clientID string, since time.Time, limit int) ([]model.RecentConfig, error) {
	return m.listRecentFn(ctx, clientID, since, limit)
}

func (m *mockRepo) TrimRecent(ctx context.Context, clientID string, since time.Time, keep int) error {
	return m.trimRecentFn(ctx, clientID, since, keep)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}

// MOCK ENGINE

type mockCompositor struct {
	compositeFn func(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error)
}

func (m *mockCompositor) Composite(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error) {
	return m.compositeFn(ctx, src, assets, s)
}

type mockBatch struct {
	buildFn func(ctx context.Context, req model.WatermarkRequest) ([]byte, error)
}

func (m *mockBatch) Build(ctx context.Context, req model.WatermarkRequest) ([]byte, error) {
	return m.buildFn(ctx, req)
}
