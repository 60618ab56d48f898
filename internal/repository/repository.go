// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/repository/wmpostgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type JobRepo interface {
	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	DeleteJob(ctx context.Context, id string) error
	UpdateJobStatus(ctx context.Context, id string, newStat model.Status) error
	SaveJobResult(ctx context.Context, j *model.Job) error
	FetchOrphans(ctx context.Context, limit int) ([]string, error)
}

type PresetRepo interface {
	CreatePreset(ctx context.Context, p *model.Preset) error
	ListPresets(ctx context.Context) ([]model.Preset, error)
	DeletePreset(ctx context.Context, id string) error
}

type RecentRepo interface {
	SaveRecent(ctx context.Context, clientID, fingerprint string, cfg model.WatermarkConfig, savedAt time.Time) error
	ListRecent(ctx context.Context, clientID string, since time.Time, limit int) ([]model.RecentConfig, error)
	TrimRecent(ctx context.Context, clientID string, since time.Time, keep int) error
}

// Repo - все хранилища приложения в одной базе
type Repo interface {
	JobRepo
	PresetRepo
	RecentRepo
}

func NewPostgresRepo(dbconn *dbpg.DB) Repo {
	return wmpostgres.PostgresRepo{DB: dbconn}
}

func ConnectWithRetries(dsn string, retryCount int, idleTime time.Duration) (*dbpg.DB, error) {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	var dbConn *dbpg.DB
	var err error

	for i := range retryCount {
		dbConn, err = dbpg.New(dsn, nil, &dbOptions)
		if err == nil {
			return dbConn, nil
		}
		zlog.Logger.Warn().Err(err).Int("attempt", i+1).Dur("wait", idleTime).Msg("Failed to connect to PGDB")
		time.Sleep(idleTime)
	}

	return nil, fmt.Errorf("failed to connect to DB after %d attempts: %w", retryCount, err)
}

func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) error {
	var err error
	for i := range retries {
		zlog.Logger.Info().Int("attempt", i+1).Msg("Running migrations")
		if err = runMigrate(db, migrationsPath); err == nil {
			return nil
		}
		zlog.Logger.Warn().Err(err).Dur("wait", idle).Msg("Migration try was unsuccessful")
		time.Sleep(idle)
	}
	return fmt.Errorf("out of migration retries: %w", err)
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	zlog.Logger.Info().Str("source", sourceURL).Msg("Applying migrations")

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	zlog.Logger.Info().Msg("Database migrations applied successfully")
	return nil
}
