package main

import (
	"context"

	"github.com/UnendingLoop/Watermarker/internal/transport"
)

// WatermarkAPIService - все, что нужно HTTP-слою, плюс фоновое восстановление подвисших задач
type WatermarkAPIService interface {
	transport.WatermarkService
	ReviveOrphans(ctx context.Context, limit int)
}
