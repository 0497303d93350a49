package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/inferloop/patternscope/internal/config"
)

// Flags override the loaded configuration when set.
type Flags struct {
	ConfigFile string
	Host       string
	Port       int
	LogLevel   string
	LogFormat  string
	NoMetrics  bool
	Version    bool
}

func ParseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to configuration file")
	flag.StringVar(&flags.Host, "host", "", "Server host (overrides server.host)")
	flag.IntVar(&flags.Port, "port", 0, "Server port (overrides server.port)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&flags.LogFormat, "log-format", "", "Log format (json, text)")
	flag.BoolVar(&flags.NoMetrics, "no-metrics", false, "Do not expose /metrics")
	flag.BoolVar(&flags.Version, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPattern detection API server\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flags.Version {
		printVersion()
		os.Exit(0)
	}

	return flags
}

// Apply copies the flags that were set onto cfg.
func (f *Flags) Apply(cfg *config.Config) {
	if f.Host != "" {
		cfg.Server.Host = f.Host
	}
	if f.Port != 0 {
		cfg.Server.Port = f.Port
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Logging.Format = f.LogFormat
	}
	if f.NoMetrics {
		cfg.Server.EnableMetrics = false
	}
}
