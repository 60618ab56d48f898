// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/archive"
	"github.com/UnendingLoop/Watermarker/internal/config"
	"github.com/UnendingLoop/Watermarker/internal/kafka"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/service"
	"github.com/UnendingLoop/Watermarker/internal/storage"
	"github.com/UnendingLoop/Watermarker/internal/storage/miniostorage"
	"github.com/UnendingLoop/Watermarker/internal/transport"
	"github.com/UnendingLoop/Watermarker/internal/watermark"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
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
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn, err := repository.ConnectWithRetries(appConfig.PostgresDSN, 5, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	// накатываем миграцию
	if err := repository.MigrateWithRetries(dbConn.Master, appConfig.MigrationsPath, 10, 15*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// подключиться к хранилищу
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

	// шрифты и движок наложения
	fonts := initFonts(appConfig.FontDir)
	engine := watermark.NewEngine(fonts)
	builder := archive.NewBuilder(engine, appConfig.BatchWorkers)

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, appConfig.KafkaBroker, 5*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is unreachable")
	}
	// подключиться к кафке как продюсер
	if err := kafka.InitKafkaTopics(ctx, appConfig.KafkaBroker, 10*time.Second, appConfig.KafkaTopic); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init Kafka topics")
	}
	pub := wbfkafka.NewProducer([]string{appConfig.KafkaBroker}, appConfig.KafkaTopic)

	// создаем экземпляр сервиса
	var svc WatermarkAPIService = service.NewWatermarkService(engine, builder, fonts, repo, pub, strg, service.Limits{
		MaxFileSize: appConfig.MaxFileSize,
		MaxFiles:    appConfig.MaxFiles,
		RecentTTL:   appConfig.RecentTTL,
	})
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewWatermarkHandler(svc, appConfig.MaxFileSize)
	// сетапим сервер
	router := ginext.New(appConfig.GinMode)

	router.GET("/ping", handlers.SimplePinger)
	router.GET("/fonts", handlers.Fonts)
	router.POST("/probe", handlers.Probe)                     // натуральный размер картинки
	router.POST("/preview", handlers.Preview)                 // геометрия оверлея для превью
	router.POST("/watermark", handlers.Watermark)             // одна картинка -> JPEG
	router.POST("/watermark/preview", handlers.RenderPreview) // уменьшенный результат
	router.POST("/watermark/batch", handlers.Batch)           // пачка -> ZIP сразу
	router.POST("/jobs", handlers.CreateJob)                  // пачка -> ZIP через воркер
	router.GET("/jobs/:id", handlers.GetJob)                  // статус задачи
	router.GET("/jobs/:id/result", handlers.LoadResult)       // загрузка архива
	router.DELETE("/jobs/:id", handlers.DeleteJob)            // удаление
	router.GET("/presets", handlers.ListPresets)
	router.GET("/presets/builtin", handlers.BuiltinPresets)
	router.POST("/presets", handlers.CreatePreset)
	router.DELETE("/presets/:id", handlers.DeletePreset)
	router.GET("/recent", handlers.ListRecent)
	router.POST("/recent", handlers.SaveRecent)

	srv := &http.Server{
		Addr:              ":" + appConfig.AppPort,
		Handler:           mwlogger.NewMWLogger(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Str("addr", srv.Addr).Msg("Server running")
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// запускаем фонового воркера для отслеживания подвисших задач
	go recoveryLoop(ctx, svc)

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(srv, pub, dbConn)
	zlog.Logger.Info().Msg("Exiting API...")
}

func initFonts(dir string) *watermark.FontRegistry {
	fonts, err := watermark.NewFontRegistry()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load builtin fonts")
	}
	if dir != "" {
		n, err := fonts.LoadDir(dir)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("dir", dir).Msg("Failed to load some fonts")
		}
		zlog.Logger.Info().Int("loaded", n).Strs("families", fonts.Families()).Msg("Fonts registered")
	}
	warnMissingGlyphs(fonts)
	return fonts
}

// warnMissingGlyphs сообщает о готовых подписях, которые нечем нарисовать
func warnMissingGlyphs(fonts *watermark.FontRegistry) {
	for _, text := range model.BuiltinTexts {
		if missing := fonts.Missing(text); len(missing) > 0 {
			zlog.Logger.Warn().Str("text", text).Str("runes", string(missing)).Msg("No registered font covers builtin text, put a CJK TTF into FONT_DIR")
		}
	}
}

func recoveryLoop(ctx context.Context, svc WatermarkAPIService) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Recovery loop crashed")
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(ctx, 20)
		}
	}
}

func shutdown(srv *http.Server, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown HTTP-server")
	}

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-writer")
	}
	zlog.Logger.Info().Msg("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
