package main

import (
	"github.com/UnendingLoop/Watermarker/internal/worker"
)

// WatermarkWorkerService - чтение задачи и запись результата, больше воркеру от сервиса ничего не нужно
type WatermarkWorkerService interface {
	worker.JobWorkerService
}
