package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/preview"
	"github.com/gin-gonic/gin"
)

type mockWatermarkService struct {
	watermarkFn     func(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error)
	renderPreviewFn func(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error)
	batchFn         func(ctx context.Context, req model.WatermarkRequest) ([]byte, error)
	previewFn       func(ctx context.Context, req preview.Request) (*preview.Overlay, error)
	probeFn         func(ctx context.Context, f model.SourceFile) (model.Size, error)
	fonts           []string

	createJobFn  func(ctx context.Context, req model.WatermarkRequest) (*model.Job, error)
	getJobFn     func(ctx context.Context, id string) (*model.Job, error)
	loadResultFn func(ctx context.Context, id string) (io.ReadCloser, string, error)
	deleteJobFn  func(ctx context.Context, id string) error

	listPresetsFn  func(ctx context.Context) ([]model.Preset, error)
	createPresetFn func(ctx context.Context, p *model.Preset) (*model.Preset, error)
	deletePresetFn func(ctx context.Context, id string) error
	builtin        []model.Preset

	saveRecentFn func(ctx context.Context, clientID string, cfg model.WatermarkConfig) error
	listRecentFn func(ctx context.Context, clientID string) ([]model.RecentConfig, error)
}

func (m *mockWatermarkService) Watermark(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error) {
	return m.watermarkFn(ctx, req)
}

func (m *mockWatermarkService) RenderPreview(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error) {
	return m.renderPreviewFn(ctx, req)
}

func (m *mockWatermarkService) Batch(ctx context.Context, req model.WatermarkRequest) ([]byte, error) {
	return m.batchFn(ctx, req)
}

func (m *mockWatermarkService) Preview(ctx context.Context, req preview.Request) (*preview.Overlay, error) {
	return m.previewFn(ctx, req)
}

func (m *mockWatermarkService) Probe(ctx context.Context, f model.SourceFile) (model.Size, error) {
	return m.probeFn(ctx, f)
}

func (m *mockWatermarkService) FontFamilies() []string {
	return m.fonts
}

func (m *mockWatermarkService) CreateJob(ctx context.Context, req model.WatermarkRequest) (*model.Job, error) {
	return m.createJobFn(ctx, req)
}

func (m *mockWatermarkService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return m.getJobFn(ctx, id)
}

func (m *mockWatermarkService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockWatermarkService) DeleteJob(ctx context.Context, id string) error {
	return m.deleteJobFn(ctx, id)
}

func (m *mockWatermarkService) ListPresets(ctx context.Context) ([]model.Preset, error) {
	return m.listPresetsFn(ctx)
}

func (m *mockWatermarkService) CreatePreset(ctx context.Context, p *model.Preset) (*model.Preset, error) {
	return m.createPresetFn(ctx, p)
}

func (m *mockWatermarkService) DeletePreset(ctx context.Context, id string) error {
	return m.deletePresetFn(ctx, id)
}

func (m *mockWatermarkService) BuiltinPresets() []model.Preset {
	return m.builtin
}

func (m *mockWatermarkService) SaveRecent(ctx context.Context, clientID string, cfg model.WatermarkConfig) error {
	return m.saveRecentFn(ctx, clientID, cfg)
}

func (m *mockWatermarkService) ListRecent(ctx context.Context, clientID string) ([]model.RecentConfig, error) {
	return m.listRecentFn(ctx, clientID)
}

func init() {
	gin.SetMode(gin.TestMode)
}
