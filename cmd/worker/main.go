// Package main (in worker-subfolder) launches the batch worker that turns queued jobs into ZIP archives
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/archive"
	"github.com/UnendingLoop/Watermarker/internal/config"
	"github.com/UnendingLoop/Watermarker/internal/kafka"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/service"
	"github.com/UnendingLoop/Watermarker/internal/storage"
	"github.com/UnendingLoop/Watermarker/internal/storage/miniostorage"
	"github.com/UnendingLoop/Watermarker/internal/watermark"
	"github.com/UnendingLoop/Watermarker/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig, err := config.Load("./.env")
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(appConfig.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn, err := repository.ConnectWithRetries(appConfig.PostgresDSN, 5, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	// подкллючиться к хранилищу
	strg, err := storage.NewBlobStorage(ctx, miniostorage.Options{
		Endpoint: appConfig.MinioEndpoint,
		User:     appConfig.MinioUser,
		Password: appConfig.MinioPass,
		Bucket:   appConfig.BucketName,
	}, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to blob-storage")
	}
	// создаем экземпляр репо
	repo := repository.NewPostgresRepo(dbConn)

	// движок и сборщик архивов - тот же код, что у синхронного эндпоинта
	fonts, err := watermark.NewFontRegistry()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load builtin fonts")
	}
	if appConfig.FontDir != "" {
		if _, err := fonts.LoadDir(appConfig.FontDir); err != nil {
			zlog.Logger.Warn().Err(err).Str("dir", appConfig.FontDir).Msg("Failed to load some fonts")
		}
	}
	for _, text := range model.BuiltinTexts {
		if missing := fonts.Missing(text); len(missing) > 0 {
			zlog.Logger.Warn().Str("text", text).Str("runes", string(missing)).Msg("No registered font covers builtin text, put a CJK TTF into FONT_DIR")
		}
	}
	engine := watermark.NewEngine(fonts)
	builder := archive.NewBuilder(engine, appConfig.BatchWorkers)

	// создаем экземпляр сервиса
	var svc WatermarkWorkerService = service.NewWatermarkService(engine, builder, fonts, repo, worker.NoopPublisher{}, strg, service.Limits{
		MaxFileSize: appConfig.MaxFileSize,
		MaxFiles:    appConfig.MaxFiles,
		RecentTTL:   appConfig.RecentTTL,
	})

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, appConfig.KafkaBroker, 5*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is unreachable")
	}
	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{appConfig.KafkaBroker}, appConfig.KafkaTopic, appConfig.KafkaGroupID)

	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	w := worker.NewWorkerInstance(strg, svc, builder, queue, cons)
	go w.StartWorker(ctx)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
	}
	zlog.Logger.Info().Msg("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
