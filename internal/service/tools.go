package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/google/uuid"
)

const (
	srcKeyPrefix    = "sources/"
	assetKeyPrefix  = "assets/"
	resultKeyPrefix = "results/"
)

// validateRequest проверяет настройки и лимиты загрузки до любой тяжелой работы
func (c *WatermarkService) validateRequest(req *model.WatermarkRequest) error {
	if err := req.Settings.Validate(); err != nil {
		return err
	}

	switch {
	case len(req.Images) == 0:
		return model.ErrEmptySource
	case len(req.Images) > c.limits.MaxFiles:
		return fmt.Errorf("%w: %d images, max %d", model.ErrTooManyFiles, len(req.Images), c.limits.MaxFiles)
	case len(req.Watermarks) > model.MaxWatermarks:
		return fmt.Errorf("%w: %d watermarks, max %d", model.ErrTooManyFiles, len(req.Watermarks), model.MaxWatermarks)
	}

	for _, f := range req.Images {
		if err := c.checkFile(f); err != nil {
			return err
		}
	}
	for _, f := range req.Watermarks {
		if err := c.checkFile(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *WatermarkService) checkFile(f model.SourceFile) error {
	if len(f.Data) == 0 {
		return &model.FileError{Name: f.Name, Err: model.ErrInvalidInput}
	}
	if int64(len(f.Data)) > c.limits.MaxFileSize {
		return &model.FileError{Name: f.Name, Err: model.ErrFileTooLarge}
	}
	return nil
}

func objectKey(prefix string, uid uuid.UUID, idx int, f model.SourceFile) string {
	ct := imageproc.DetectContentType(f.Data, f.ContentType)
	return prefix + uid.String() + "/" + strconv.Itoa(idx) + model.GetImageFileExt[ct]
}

func ResultKey(uid uuid.UUID) string {
	return resultKeyPrefix + uid.String() + ".zip"
}

// fingerprint - стабильный хеш конфигурации, чтобы одинаковые настройки не дублировались в истории
func fingerprint(cfg model.WatermarkConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeClientID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 128 {
		return "", model.ErrMissingClientID
	}
	return id, nil
}
