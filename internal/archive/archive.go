// Package archive runs the watermark engine over a batch of images and packs the results into a ZIP.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/klauspost/compress/zip"
	"github.com/sourcegraph/conc/pool"
)

// Compositor is the single-image engine used by the batch.
type Compositor interface {
	Composite(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error)
}

type Builder struct {
	engine  Compositor
	workers int
}

func NewBuilder(engine Compositor, workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{engine: engine, workers: workers}
}

// Process composites every image of the request concurrently. The batch is all-or-nothing:
// the first failure cancels the remaining work and is returned as *model.FileError.
func (b *Builder) Process(ctx context.Context, req model.WatermarkRequest) ([]*model.Composite, error) {
	if err := CheckLimits(req); err != nil {
		return nil, err
	}

	logger := mwlogger.LoggerFromContext(ctx)
	results := make([]*model.Composite, len(req.Images))

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(b.workers)

	for i, src := range req.Images {
		p.Go(func(ctx context.Context) error {
			res, err := b.engine.Composite(ctx, src, req.Watermarks, req.Settings)
			if err != nil {
				return &model.FileError{Name: src.Name, Err: err}
			}
			results[i] = res
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		logger.Error().Err(err).Int("files", len(req.Images)).Msg("batch failed")
		return nil, err
	}

	logger.Info().Int("files", len(results)).Msg("batch processed")
	return results, nil
}

// Build processes the batch and returns the ZIP archive. No archive is produced on failure.
func (b *Builder) Build(ctx context.Context, req model.WatermarkRequest) ([]byte, error) {
	results, err := b.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteZip(&buf, results, time.Now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CheckLimits validates batch size and the number of watermark candidates.
func CheckLimits(req model.WatermarkRequest) error {
	switch {
	case len(req.Images) == 0:
		return model.ErrEmptySource
	case len(req.Images) > model.MaxFilesCount:
		return fmt.Errorf("%w: %d images, max %d", model.ErrTooManyFiles, len(req.Images), model.MaxFilesCount)
	case len(req.Watermarks) > model.MaxWatermarks:
		return fmt.Errorf("%w: %d watermarks, max %d", model.ErrTooManyFiles, len(req.Watermarks), model.MaxWatermarks)
	}

	for _, files := range [][]model.SourceFile{req.Images, req.Watermarks} {
		for _, f := range files {
			if len(f.Data) > model.MaxFileSize {
				return &model.FileError{Name: f.Name, Err: model.ErrFileTooLarge}
			}
		}
	}
	return nil
}

// WriteZip stores composites as <base>_watermarked.jpg entries; clashing names get a numeric suffix.
func WriteZip(w io.Writer, items []*model.Composite, modified time.Time) error {
	zw := zip.NewWriter(w)

	for i, name := range EntryNames(items) {
		// JPEG уже сжат, повторно не жмем
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("failed to create zip entry %q: %w", name, err)
		}
		if _, err := fw.Write(items[i].Data); err != nil {
			return fmt.Errorf("failed to write zip entry %q: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip: %w", err)
	}
	return nil
}

// EntryNames returns unique archive entry names in the order of items.
func EntryNames(items []*model.Composite) []string {
	names := make([]string, len(items))
	seen := make(map[string]int, len(items))

	for i, it := range items {
		base := filepath.Base(it.Name)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if !strings.HasSuffix(base, model.WatermarkedLabel) {
			base = strings.TrimSuffix(imageproc.WatermarkedName(it.Name, ".jpg"), ".jpg")
		}

		n := seen[base]
		seen[base]++
		if n > 0 {
			base += "_" + strconv.Itoa(n+1)
		}
		names[i] = base + ".jpg"
	}
	return names
}
