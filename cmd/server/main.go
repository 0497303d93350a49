package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/app"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/logging"
	"github.com/inferloop/patternscope/internal/server"
)

func main() {
	flags := ParseFlags()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flags.Apply(&cfg)

	logger := logging.New(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"buildDate": BuildDate,
	}).Info("Starting pattern detection server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}

	srv := server.NewServer(cfg.Server, a.Engine, a.Metrics, logger, server.WithReadiness(a.Health))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("Server failed")
		}
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if err := a.Close(); err != nil {
		logger.WithError(err).Warn("Failed to release engine resources")
	}

	logger.Info("Server stopped")
}
