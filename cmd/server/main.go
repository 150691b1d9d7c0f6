// Package main is the entry point for the brokersync service. It links
// pooled investment accounts to their brokerage via OAuth, synchronizes
// position data nightly and captures end-of-day balance snapshots.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/clubvest/brokersync/internal/auth"
	authhandlers "github.com/clubvest/brokersync/internal/auth/handlers"
	"github.com/clubvest/brokersync/internal/backup"
	"github.com/clubvest/brokersync/internal/brokerage"
	"github.com/clubvest/brokersync/internal/config"
	"github.com/clubvest/brokersync/internal/database"
	"github.com/clubvest/brokersync/internal/modules/settings"
	settingshandlers "github.com/clubvest/brokersync/internal/modules/settings/handlers"
	"github.com/clubvest/brokersync/internal/modules/snapshots"
	snapshothandlers "github.com/clubvest/brokersync/internal/modules/snapshots/handlers"
	"github.com/clubvest/brokersync/internal/modules/sync"
	synchandlers "github.com/clubvest/brokersync/internal/modules/sync/handlers"
	"github.com/clubvest/brokersync/internal/scheduler"
	"github.com/clubvest/brokersync/internal/server"
	"github.com/clubvest/brokersync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger isn't configured yet
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting brokersync")

	db, err := database.New(filepath.Join(cfg.DataDir, "brokersync.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Settings stored in the database override environment values
	settingsRepo := settings.NewRepository(db.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply settings overrides")
	}

	// OAuth credential lifecycle
	tokenRepo := auth.NewTokenRepository(db.Conn(), log)
	stateRepo := auth.NewStateRepository(db.Conn(), log)
	authManager := auth.NewManager(tokenRepo, stateRepo, cfg.OAuth, log)

	// Rate-limited brokerage API client
	brokerClient := brokerage.NewClient(cfg.Brokerage, authManager, log)
	defer brokerClient.Close()

	// Services
	positionRepo := sync.NewPositionRepository(db.Conn(), log)
	syncService := sync.NewService(brokerClient, positionRepo, log)

	accountRepo := snapshots.NewAccountRepository(db.Conn(), log)
	snapshotRepo := snapshots.NewSnapshotRepository(db.Conn(), log)
	snapshotService := snapshots.NewService(brokerClient, accountRepo, snapshotRepo, log)

	// Background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.SyncSchedule, scheduler.NewPositionsSyncJob(syncService, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register positions sync job")
	}
	if err := sched.AddJob(cfg.SnapshotSchedule, scheduler.NewSnapshotCaptureJob(snapshotService, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot capture job")
	}

	if cfg.Backup.Enabled {
		backupService, err := backup.NewService(context.Background(), cfg.Backup, db, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup service")
		}
		if err := sched.AddJob(cfg.Backup.Schedule, scheduler.NewBackupJob(backupService, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:             log,
		DB:              db,
		Config:          cfg,
		AuthHandler:     authhandlers.NewHandler(authManager, log),
		SyncHandler:     synchandlers.NewHandler(syncService, log),
		SnapshotHandler: snapshothandlers.NewHandler(snapshotService, log),
		SettingsHandler: settingshandlers.NewHandler(settingsRepo, log),
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
