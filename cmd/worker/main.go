package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/app"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/alerting"
	"github.com/inferloop/patternscope/internal/observability/logging"
	"github.com/inferloop/patternscope/internal/worker"
)

type WorkerFlags struct {
	ConfigFile string
	Interval   time.Duration
	Lookback   time.Duration
	Source     string
	Sinks      string
	LogLevel   string
	Once       bool
	NoMetrics  bool
}

func main() {
	flags := parseFlags()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flags.apply(&cfg)

	logger := logging.New(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"source":   cfg.Worker.Source,
		"sinks":    cfg.Worker.Sinks,
		"interval": cfg.Worker.Interval.String(),
		"lookback": cfg.Worker.Lookback.String(),
	}).Info("Starting pattern detection worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx, cfg, flags, logger, sigChan); err != nil {
		logger.WithError(err).Error("Worker failed")
		os.Exit(1)
	}
	logger.Info("Worker stopped successfully")
}

func run(ctx context.Context, cfg config.Config, flags *WorkerFlags, logger *logrus.Logger, sigChan <-chan os.Signal) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	source, err := a.Storage.Source(ctx, cfg.Worker.Source)
	if err != nil {
		return err
	}
	defer source.Close()

	sinks, err := a.Storage.Sinks(ctx, cfg.Worker.Sinks)
	if err != nil {
		return err
	}
	if cfg.Alerting.Enabled {
		sinks = append(sinks, alerting.NewManager(cfg.Alerting, logger))
	}
	defer sinks.Close()

	job, err := worker.NewDetectionJob(cfg.Worker, source, sinks, a.Engine, a.Metrics, logger)
	if err != nil {
		return err
	}

	if flags.Once {
		_, err := job.RunOnce(ctx)
		return err
	}

	if !flags.NoMetrics {
		if err := a.Metrics.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			a.Metrics.Stop(stopCtx)
		}()
	}

	scheduler, err := worker.NewScheduler(job, logger)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received")

	return scheduler.Stop()
}

func parseFlags() *WorkerFlags {
	flags := &WorkerFlags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to configuration file")
	flag.DurationVar(&flags.Interval, "interval", 0, "Detection interval (overrides worker.interval)")
	flag.DurationVar(&flags.Lookback, "lookback", 0, "Analysis window length (overrides worker.lookback)")
	flag.StringVar(&flags.Source, "source", "", "Data source (file, influxdb)")
	flag.StringVar(&flags.Sinks, "sinks", "", "Comma separated result sinks (file, s3, timescaledb)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level")
	flag.BoolVar(&flags.Once, "once", false, "Run one detection pass and exit")
	flag.BoolVar(&flags.NoMetrics, "no-metrics", false, "Do not serve Prometheus metrics")

	flag.Parse()

	return flags
}

func (f *WorkerFlags) apply(cfg *config.Config) {
	if f.Interval > 0 {
		cfg.Worker.Interval = f.Interval
	}
	if f.Lookback > 0 {
		cfg.Worker.Lookback = f.Lookback
	}
	if f.Source != "" {
		cfg.Worker.Source = f.Source
	}
	if f.Sinks != "" {
		cfg.Worker.Sinks = strings.Split(f.Sinks, ",")
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
}
