package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openmelsec/laddergen/internal/api/rest"
	"github.com/openmelsec/laddergen/internal/config"
	"github.com/openmelsec/laddergen/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	// Logger initialisieren
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Config laden
	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal("Failed to load config", zap.Error(err))
		}
		logger.Info("Config loaded successfully", zap.String("path", *configPath))
	}

	devCfg, err := cfg.Target.DeviceConfig()
	if err != nil {
		logger.Fatal("Invalid target configuration", zap.Error(err))
	}

	pipe, err := pipeline.New(devCfg, logger)
	if err != nil {
		logger.Fatal("Failed to build pipeline", zap.Error(err))
	}

	server := rest.NewServer(cfg, pipe, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("laddergen server started successfully",
		zap.Int("port", cfg.Server.HTTPPort),
		zap.String("cpu_type", cfg.Target.CPUType))

	// Graceful Shutdown auf Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("laddergen server stopped successfully")
}
