package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/moodtune/internal/api"
	"github.com/timmy/moodtune/internal/config"
	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/pipeline"
	"github.com/timmy/moodtune/internal/repository"
	"github.com/timmy/moodtune/internal/service"
	"github.com/timmy/moodtune/internal/storage"
)

func main() {
	log := logger.NewFromEnv()
	logger.SetDefault(log)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer repository.Close(db)

	objectStorage, err := storage.NewStorageFromConfig(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	if objectStorage == nil {
		log.Info("Object storage disabled, uploads will not be kept")
	}

	rt, err := pipeline.NewRuntimeFromConfig(cfg, objectStorage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer rt.Close()

	p := pipeline.New(rt)

	if cfg.Server.WarmupOnStart {
		ctx := logger.SetComponent(log.WithContext(context.Background()), "warmup")
		start := time.Now()
		if err := p.Warmup(ctx); err != nil {
			// Requests retry the load, so a cold model server is not fatal.
			logger.FromContext(ctx).WithError(err).Warn("Warmup failed")
		} else {
			logger.Since(start).Info(ctx, "Warmup complete")
		}
	}

	uploadService := service.NewUploadService(
		p,
		repository.NewUploadRepository(db),
		objectStorage,
		&service.UploadConfig{
			UploadPrefix: cfg.Storage.UploadPrefix,
			MaxBytes:     int64(cfg.Server.MaxUploadMB) << 20,
			LinkBase:     cfg.Recommend.LinkBase,
		},
	)

	router := api.SetupRouter(uploadService, p, &cfg.Server, log)
	defer router.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
