package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration. Metric definitions live in their
// own file (see internal/definition); this covers everything around them.
type Config struct {
	Listen          string  `yaml:"listen"`
	MetricsFile     string  `yaml:"metrics_file"`
	DBPath          string  `yaml:"database"` // empty disables history persistence
	PidFile         string  `yaml:"pid_file"`
	LogFile         string  `yaml:"log_file"`
	StalenessFactor float64 `yaml:"staleness_factor"`
	ShutdownGraceMs int     `yaml:"shutdown_grace_ms"`
	SampleTimeoutMs int     `yaml:"sample_timeout_ms"`
	RetentionHours  int     `yaml:"retention_hours"`

	// Parsed from command line (not YAML)
	ConfigPath string `yaml:"-"`
}

// ShutdownGrace returns the shutdown grace period as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMs) * time.Millisecond
}

// SampleTimeout returns the per-acquisition timeout cap as a duration.
func (c *Config) SampleTimeout() time.Duration {
	return time.Duration(c.SampleTimeoutMs) * time.Millisecond
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":9100",
		MetricsFile:     "health_metrics.json",
		DBPath:          "health-tracker.db",
		PidFile:         "health-tracker.pid",
		LogFile:         "health-tracker.log",
		StalenessFactor: 3,
		ShutdownGraceMs: 5000,
		SampleTimeoutMs: 10000,
		RetentionHours:  24,
		ConfigPath:      "config.yaml",
	}
}

// Load reads configuration with priority: defaults < config.yaml < env vars < flags.
// It expects os.Args to already have the subcommand stripped (if any).
func Load() *Config {
	cfg := DefaultConfig()

	// 1) Pre-scan for -config flag before parsing (so we know which file to read)
	configPath := cfg.ConfigPath
	for i, arg := range os.Args[1:] {
		if arg == "-config" || arg == "--config" {
			if i+1 < len(os.Args)-1 {
				configPath = os.Args[i+2]
			}
		} else if strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config=") {
			configPath = strings.SplitN(arg, "=", 2)[1]
		}
	}

	// 2) Load YAML config file
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Printf("[config] warning: failed to parse %s: %v", configPath, err)
		} else {
			log.Printf("[config] loaded %s", configPath)
		}
	}
	cfg.ConfigPath = configPath

	// 3) Environment variables override YAML
	if v := os.Getenv("HEALTHTRACK_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("HEALTHTRACK_DB"); v != "" {
		cfg.DBPath = v
	}
	// METRICS_FILE_PATH is what the deployment descriptor mounts the
	// definitions under; keep honoring it.
	if v := os.Getenv("METRICS_FILE_PATH"); v != "" {
		cfg.MetricsFile = v
	}
	if v := os.Getenv("HEALTHTRACK_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}
	if v := os.Getenv("HEALTHTRACK_RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RetentionHours = n
		}
	}

	// 4) Flags override everything
	flag.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to config.yaml")
	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address (host:port)")
	flag.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Metric definitions file (JSON)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite history path (empty disables persistence)")
	flag.StringVar(&cfg.PidFile, "pid-file", cfg.PidFile, "PID file path")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	flag.Parse()

	if cfg.StalenessFactor <= 0 {
		cfg.StalenessFactor = 3
	}
	if cfg.ShutdownGraceMs <= 0 {
		cfg.ShutdownGraceMs = 5000
	}

	return cfg
}
