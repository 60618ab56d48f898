// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/preview"
	"github.com/wb-go/wbf/ginext"
)

type WatermarkHandler struct {
	service     WatermarkService
	maxFileSize int64
}

type WatermarkService interface {
	Watermark(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error)
	RenderPreview(ctx context.Context, req model.WatermarkRequest) (*model.Composite, error)
	Batch(ctx context.Context, req model.WatermarkRequest) ([]byte, error)
	Preview(ctx context.Context, req preview.Request) (*preview.Overlay, error)
	Probe(ctx context.Context, f model.SourceFile) (model.Size, error)
	FontFamilies() []string

	CreateJob(ctx context.Context, req model.WatermarkRequest) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) // прям скачать архив
	DeleteJob(ctx context.Context, id string) error                           // удалить как в базе, так и в minio

	ListPresets(ctx context.Context) ([]model.Preset, error)
	CreatePreset(ctx context.Context, p *model.Preset) (*model.Preset, error)
	DeletePreset(ctx context.Context, id string) error
	BuiltinPresets() []model.Preset

	SaveRecent(ctx context.Context, clientID string, cfg model.WatermarkConfig) error
	ListRecent(ctx context.Context, clientID string) ([]model.RecentConfig, error)
}

func NewWatermarkHandler(svc WatermarkService, maxFileSize int64) *WatermarkHandler {
	if maxFileSize <= 0 {
		maxFileSize = model.MaxFileSize
	}
	return &WatermarkHandler{
		service:     svc,
		maxFileSize: maxFileSize,
	}
}

func (h WatermarkHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// Watermark - одна картинка, ответ сразу JPEG-вложением
func (h WatermarkHandler) Watermark(ctx *ginext.Context) {
	req, err := h.readRequest(ctx, imageField)
	if err != nil {
		respondError(ctx, err)
		return
	}

	res, err := h.service.Watermark(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	sendAttachment(ctx, res.Name, res.ContentType, res.Data)
}

// RenderPreview - уменьшенный результат для показа в браузере, без вложения
func (h WatermarkHandler) RenderPreview(ctx *ginext.Context) {
	req, err := h.readRequest(ctx, imageField)
	if err != nil {
		respondError(ctx, err)
		return
	}

	res, err := h.service.RenderPreview(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Data(200, res.ContentType, res.Data)
}

func (h WatermarkHandler) Batch(ctx *ginext.Context) {
	req, err := h.readRequest(ctx, imagesField)
	if err != nil {
		respondError(ctx, err)
		return
	}

	archive, err := h.service.Batch(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	sendAttachment(ctx, model.ArchiveName, model.ZIP, archive)
}

func (h WatermarkHandler) Preview(ctx *ginext.Context) {
	var req preview.Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse preview request"})
		return
	}

	res, err := h.service.Preview(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) Probe(ctx *ginext.Context) {
	files, err := h.readFiles(ctx, imageField)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if len(files) != 1 {
		respondError(ctx, model.ErrEmptySource)
		return
	}

	res, err := h.service.Probe(ctx.Request.Context(), files[0])
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) Fonts(ctx *ginext.Context) {
	ctx.JSON(200, map[string][]string{"fonts": h.service.FontFamilies()})
}

//----------------------------------

func (h WatermarkHandler) CreateJob(ctx *ginext.Context) {
	req, err := h.readRequest(ctx, imagesField)
	if err != nil {
		respondError(ctx, err)
		return
	}

	res, err := h.service.CreateJob(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(201, res)
}

func (h WatermarkHandler) GetJob(ctx *ginext.Context) {
	res, err := h.service.GetJob(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	defer closeFileFlow(res)

	ctx.Header("Content-Disposition", attachmentDisposition(model.ArchiveName))
	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Error().Err(err).
			Int64("written", n).Str("job", id).Msg("Failed to write archive to response")
	}
}

func (h WatermarkHandler) DeleteJob(ctx *ginext.Context) {
	if err := h.service.DeleteJob(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(204)
}

//----------------------------------

func (h WatermarkHandler) ListPresets(ctx *ginext.Context) {
	res, err := h.service.ListPresets(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) BuiltinPresets(ctx *ginext.Context) {
	ctx.JSON(200, h.service.BuiltinPresets())
}

func (h WatermarkHandler) CreatePreset(ctx *ginext.Context) {
	var p model.Preset
	if err := ctx.ShouldBindJSON(&p); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse preset"})
		return
	}

	res, err := h.service.CreatePreset(ctx.Request.Context(), &p)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(201, res)
}

func (h WatermarkHandler) DeletePreset(ctx *ginext.Context) {
	if err := h.service.DeletePreset(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(204)
}

//----------------------------------

func (h WatermarkHandler) ListRecent(ctx *ginext.Context) {
	res, err := h.service.ListRecent(ctx.Request.Context(), ctx.GetHeader(clientIDHeader))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) SaveRecent(ctx *ginext.Context) {
	var cfg model.WatermarkConfig
	if err := ctx.ShouldBindJSON(&cfg); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse watermark config"})
		return
	}

	if err := h.service.SaveRecent(ctx.Request.Context(), ctx.GetHeader(clientIDHeader), cfg); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(204)
}
