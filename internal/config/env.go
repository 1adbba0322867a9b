package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log-forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ConvertConfig holds the page-conversion knobs consumed by the pipeline.
type ConvertConfig struct {
	// Resolution of the input scans, in DPI.
	Resolution int
	// LossLevel is the cjb2 lossiness for bitonal pages.
	LossLevel int
	// Quality is the 3-value comma-separated quality/slice spec for the
	// continuous-tone encoders.
	Quality string
	// Workers is the page worker-pool size; 1 means sequential.
	Workers int
	// TempDir overrides the per-run temporary directory. Empty means a
	// fresh directory is created and removed after the run.
	TempDir string
	// KeepTemp retains per-page artifacts after assembly.
	KeepTemp bool
	// AllowPartial assembles the successful pages even when some pages
	// failed; without it any page failure fails the whole run (after all
	// workers have drained).
	AllowPartial bool
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Convert ConvertConfig
	// MetricsAddr, when non-empty, serves prometheus metrics on that
	// address for the duration of the run.
	MetricsAddr string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", "true")),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_djvutailor",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Convert = ConvertConfig{
		Resolution:   parseInt(getEnv("RESOLUTION_DPI", "300"), 300),
		LossLevel:    parseInt(getEnv("CJB2_LOSSLEVEL", "1"), 1),
		Quality:      getEnv("C44_QUALITY", "74,89,99"),
		Workers:      parseInt(getEnv("THREADS", "1"), 1),
		TempDir:      getEnv("TEMPDIR", ""),
		KeepTemp:     parseBool(getEnv("KEEP_TEMP", "0")),
		AllowPartial: parseBool(getEnv("ALLOW_PARTIAL", "0")),
	}

	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	return cfg
}

// Validate checks the conversion knobs the CLI hands to the pipeline.
func (c ConvertConfig) Validate() error {
	if c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %d", c.Resolution)
	}
	if c.LossLevel < 0 {
		return fmt.Errorf("loss level must be non-negative, got %d", c.LossLevel)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	parts := strings.Split(c.Quality, ",")
	if len(parts) != 3 {
		return fmt.Errorf("quality spec %q must have 3 comma-separated values", c.Quality)
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(strings.TrimSpace(p)); err != nil {
			return fmt.Errorf("quality spec %q must contain integers", c.Quality)
		}
	}
	return nil
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
