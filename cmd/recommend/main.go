package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/moodtune/internal/config"
	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/pipeline"
	"github.com/timmy/moodtune/internal/storage"
)

func main() {
	// Logs go to stderr so stdout carries only the result document.
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stderr,
		ServiceName: "moodtune-recommend",
	})
	logger.SetDefault(appLogger)

	imagePath := flag.String("image", "", "Path to the face photo")
	configPath := flag.String("config", "", "Path to config file")
	warmup := flag.Bool("warmup", false, "Load the model and catalog before processing")
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	objectStorage, err := storage.NewStorageFromConfig(cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	rt, err := pipeline.NewRuntimeFromConfig(cfg, objectStorage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	p := pipeline.New(rt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logger.SetComponent(appLogger.WithContext(ctx), "recommend")

	if *warmup {
		if err := p.Warmup(ctx); err != nil {
			appLogger.WithError(err).Warn("Warmup failed")
		}
	}

	result, err := p.Process(ctx, *imagePath)
	stop()
	rt.Close()
	if err != nil {
		appLogger.WithError(err).WithField("image", *imagePath).Error("Recommendation failed")
		os.Exit(1)
	}

	os.Stdout.Write(append(result.Payload(), '\n'))
}
