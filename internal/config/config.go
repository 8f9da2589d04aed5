// Package config collects runtime settings from flags, environment variables
// and an optional YAML tuning file.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"time"
)

// Config holds the settings shared by the binaries.
type Config struct {
	Port        string
	ProjectID   string
	Dataset     string
	Bucket      string
	GeminiModel string
	GeminiKey   string
	NotionToken string
	NotionDBID  string
	APIKey      string
	LogLevel    string
	TuningFile  string
	Workers     int
	QueueSize   int

	// CleanupInterval is how often the worker schedules memory cleanup.
	CleanupInterval time.Duration

	Tuning Tuning

	// Args are the positional arguments left after flag parsing.
	Args []string
}

// Defaults used when neither a flag nor the environment provides a value.
const (
	DefaultPort        = "8080"
	DefaultDataset     = "budget"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultWorkers     = 5
	DefaultQueueSize   = 100

	DefaultCleanupInterval = 24 * time.Hour
)

// Load parses args (without the program name) into a Config. Each flag
// falls back to its environment variable, read through getenv.
func Load(name string, args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	envInt := func(key string, def int) int {
		if v, err := strconv.Atoi(getenv(key)); err == nil && v > 0 {
			return v
		}
		return def
	}

	envDuration := func(key string, def time.Duration) time.Duration {
		if v, err := time.ParseDuration(getenv(key)); err == nil && v > 0 {
			return v
		}
		return def
	}

	cfg := &Config{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", env("PORT", DefaultPort), "HTTP server port (or set PORT env)")
	fs.StringVar(&cfg.ProjectID, "project", env("GCP_PROJECT", ""), "GCP project ID (or set GCP_PROJECT env)")
	fs.StringVar(&cfg.Dataset, "dataset", env("BQ_DATASET", DefaultDataset), "BigQuery dataset (or set BQ_DATASET env)")
	fs.StringVar(&cfg.Bucket, "bucket", env("GCS_BUCKET", ""), "GCS bucket for receipt photos (or set GCS_BUCKET env)")
	fs.StringVar(&cfg.GeminiModel, "gemini-model", env("GEMINI_MODEL", DefaultGeminiModel), "Gemini model name (or set GEMINI_MODEL env)")
	fs.StringVar(&cfg.GeminiKey, "gemini-key", env("GEMINI_API_KEY", ""), "Gemini API key; empty uses application default credentials")
	fs.StringVar(&cfg.NotionToken, "notion-token", env("NOTION_TOKEN", ""), "Notion integration token (or set NOTION_TOKEN env)")
	fs.StringVar(&cfg.NotionDBID, "notion-db", env("NOTION_DB_ID", ""), "Notion transactions database ID (or set NOTION_DB_ID env)")
	fs.StringVar(&cfg.APIKey, "api-key", env("API_KEY", ""), "Key required in X-API-Key; empty disables auth")
	fs.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.TuningFile, "tuning", env("TUNING_FILE", ""), "Path to a YAML tuning file")
	fs.IntVar(&cfg.Workers, "workers", envInt("WORKERS", DefaultWorkers), "Background job workers")
	fs.IntVar(&cfg.QueueSize, "queue-size", envInt("QUEUE_SIZE", DefaultQueueSize), "Job queue buffer size")
	fs.DurationVar(&cfg.CleanupInterval, "cleanup-interval", envDuration("CLEANUP_INTERVAL", DefaultCleanupInterval), "How often the worker cleans stale category memory")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("Load: parsing flags: %w", err)
	}
	cfg.Args = fs.Args()

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("Load: workers must be positive, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("Load: queue size must be positive, got %d", cfg.QueueSize)
	}
	if cfg.CleanupInterval <= 0 {
		return nil, fmt.Errorf("Load: cleanup interval must be positive, got %s", cfg.CleanupInterval)
	}

	tuning, err := LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	cfg.Tuning = tuning

	return cfg, nil
}

// RequireProject returns an error when no GCP project is configured.
func (c *Config) RequireProject() error {
	if c.ProjectID == "" {
		return fmt.Errorf("GCP project is required: pass -project or set GCP_PROJECT")
	}
	return nil
}
