// Package storage connects the app to the object storage that keeps job sources and archives
package storage

import (
	"context"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/storage/miniostorage"
	"github.com/wb-go/wbf/zlog"
)

// NewBlobStorage ждет MinIO, пока не получится подключиться или пока не отменят ctx
func NewBlobStorage(ctx context.Context, opts miniostorage.Options, delay time.Duration) (*miniostorage.MinioBlobStorage, error) {
	for {
		zlog.Logger.Info().Str("endpoint", opts.Endpoint).Msg("Connecting to blob-storage...")
		client, err := miniostorage.NewMinioClient(ctx, opts)
		if err == nil {
			zlog.Logger.Info().Str("bucket", opts.Bucket).Msg("Successfully connected blob-storage")
			return client, nil
		}
		zlog.Logger.Warn().Err(err).Dur("retry_in", delay).Msg("Failed to init connection to blob-storage")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
