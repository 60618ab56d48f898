// Package config reads application settings from env and .env files into a typed struct
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/config"
)

type AppConfig struct {
	AppPort  string
	GinMode  string
	LogLevel string

	PostgresDSN    string
	MigrationsPath string

	MinioUser     string
	MinioPass     string
	MinioEndpoint string
	BucketName    string

	KafkaBroker  string
	KafkaTopic   string
	KafkaGroupID string

	FontDir      string
	MaxFileSize  int64
	MaxFiles     int
	BatchWorkers int
	RecentTTL    time.Duration
}

// Getter - то, что нужно от wbf-конфига
type Getter interface {
	GetString(key string) string
}

// Load reads env and the optional env file. Missing keys get defaults, malformed numbers are errors.
func Load(envFile string) (*AppConfig, error) {
	c := config.New()
	c.EnableEnv("")
	if envFile != "" {
		if err := c.LoadEnvFiles(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %q: %w", envFile, err)
		}
	}
	return Parse(c)
}

func Parse(g Getter) (*AppConfig, error) {
	cfg := &AppConfig{
		AppPort:        stringOr(g, "APP_PORT", "8080"),
		GinMode:        stringOr(g, "GIN_MODE", "release"),
		LogLevel:       stringOr(g, "LOG_LEVEL", "info"),
		PostgresDSN:    g.GetString("POSTGRES_DSN"),
		MigrationsPath: stringOr(g, "MIGRATIONS_PATH", "./migrations"),
		MinioUser:      g.GetString("MINIO_USER"),
		MinioPass:      g.GetString("MINIO_PASS"),
		MinioEndpoint:  minioEndpoint(g),
		BucketName:     stringOr(g, "BUCKET_NAME", "watermarks"),
		KafkaBroker:    stringOr(g, "KAFKA_BROKER", "localhost:9092"),
		KafkaTopic:     stringOr(g, "KAFKA_TOPIC", "watermark-jobs"),
		KafkaGroupID:   stringOr(g, "KAFKA_GROUPID", "watermark-workers"),
		FontDir:        g.GetString("FONT_DIR"),
	}

	sizeMB, err := intOr(g, "MAX_FILE_SIZE_MB", model.MaxFileSize>>20)
	if err != nil {
		return nil, err
	}
	cfg.MaxFileSize = int64(sizeMB) << 20

	if cfg.MaxFiles, err = intOr(g, "MAX_FILES", model.MaxFilesCount); err != nil {
		return nil, err
	}
	if cfg.BatchWorkers, err = intOr(g, "BATCH_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.RecentTTL, err = durationOr(g, "RECENT_TTL", model.RecentTTL); err != nil {
		return nil, err
	}

	// лимиты не даем поднять выше встроенных
	if cfg.MaxFileSize <= 0 || cfg.MaxFileSize > model.MaxFileSize {
		cfg.MaxFileSize = model.MaxFileSize
	}
	if cfg.MaxFiles <= 0 || cfg.MaxFiles > model.MaxFilesCount {
		cfg.MaxFiles = model.MaxFilesCount
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 1
	}

	return cfg, nil
}

// MINIO_ENDPOINT wins; otherwise the container name with the default port, as in docker-compose.
func minioEndpoint(g Getter) string {
	if ep := g.GetString("MINIO_ENDPOINT"); ep != "" {
		return ep
	}
	return stringOr(g, "MINIO_CONTAINER_NAME", "localhost") + ":9000"
}

func stringOr(g Getter, key, def string) string {
	if v := strings.TrimSpace(g.GetString(key)); v != "" {
		return v
	}
	return def
}

func intOr(g Getter, key string, def int) (int, error) {
	raw := strings.TrimSpace(g.GetString(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("incorrect %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func durationOr(g Getter, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(g.GetString(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("incorrect %s value %q: %w", key, raw, err)
	}
	return v, nil
}
