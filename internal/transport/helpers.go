package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

const (
	imageField     = "image"
	imagesField    = "images[]"
	watermarkField = "watermark[]"
	configField    = "config"
	clientIDHeader = "X-Client-Id"
)

var errBadForm = errors.New("failed to parse multipart form")

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrEncode):
		return 500
	case errors.Is(err, model.ErrJobNotFound),
		errors.Is(err, model.ErrPresetNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrDuplicatePreset):
		return 409
	case errors.Is(err, model.ErrFileTooLarge):
		return 413
	case errors.Is(err, model.ErrDecode),
		errors.Is(err, model.ErrWatermarkAsset):
		return 422
	case errors.Is(err, errBadForm),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidOutputSize),
		errors.Is(err, model.ErrIncorrectConfig),
		errors.Is(err, model.ErrTooManyFiles),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrMissingClientID),
		errors.Is(err, model.ErrIncorrectStatus),
		errors.Is(err, model.ErrIncorrectDisplay):
		return 400
	default:
		return 500
	}
}

// respondError отдает {"error": ...}; для ошибки конкретного файла добавляет его имя
func respondError(ctx *ginext.Context, err error) {
	body := map[string]string{"error": err.Error()}

	var fe *model.FileError
	if errors.As(err, &fe) {
		body["file"] = fe.Name
	}

	ctx.JSON(errorCodeDefiner(err), body)
}

// readRequest собирает из multipart-формы исходники, кандидатов-ватермарков и настройки
func (h WatermarkHandler) readRequest(ctx *ginext.Context, sourceField string) (model.WatermarkRequest, error) {
	var req model.WatermarkRequest

	images, err := h.readFiles(ctx, sourceField)
	if err != nil {
		return req, err
	}
	if len(images) == 0 {
		return req, model.ErrEmptySource
	}

	marks, err := h.readFiles(ctx, watermarkField)
	if err != nil {
		return req, err
	}

	if raw := ctx.PostForm(configField); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Settings); err != nil {
			return req, fmt.Errorf("%w: %v", model.ErrIncorrectConfig, err)
		}
	}

	req.Images = images
	req.Watermarks = marks
	return req, nil
}

func (h WatermarkHandler) readFiles(ctx *ginext.Context, field string) ([]model.SourceFile, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadForm, err)
	}

	headers := form.File[field]
	res := make([]model.SourceFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxFileSize {
			return nil, &model.FileError{Name: fh.Filename, Err: model.ErrFileTooLarge}
		}
		f, err := readFile(fh, h.maxFileSize)
		if err != nil {
			logger := mwlogger.LoggerFromContext(ctx.Request.Context())
			logger.Warn().Err(err).Str("file", fh.Filename).Msg("Failed to read uploaded file")
			return nil, fmt.Errorf("%w: %v", errBadForm, err)
		}
		res = append(res, f)
	}
	return res, nil
}

func readFile(fh *multipart.FileHeader, limit int64) (model.SourceFile, error) {
	file, err := fh.Open()
	if err != nil {
		return model.SourceFile{}, err
	}
	defer closeFileFlow(file)

	// на байт больше лимита, чтобы сервис увидел превышение
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return model.SourceFile{}, err
	}

	return model.SourceFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func sendAttachment(ctx *ginext.Context, name, cType string, data []byte) {
	ctx.Header("Content-Disposition", attachmentDisposition(name))
	ctx.Data(200, cType, data)
}

func attachmentDisposition(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
