// Package config loads server configuration from the environment.
// Every knob has a default that works out of the box; the RECALL_*
// variables exist for operators, not for normal use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all server tuning knobs.
type Config struct {
	// DataDir is where the SQLite database lives.
	DataDir string

	// SessionIdleTTL is how long a session survives without activity.
	SessionIdleTTL time.Duration

	// CacheTTL is the sliding lifetime of the fingerprint→namespace
	// continuity cache.
	CacheTTL time.Duration

	// MaxContentLength caps stored content size in bytes.
	MaxContentLength int

	// PreviewLength caps derived preview size in characters.
	PreviewLength int

	// CandidateCap bounds how many candidates a query scores.
	CandidateCap int

	// MaxResults bounds how many matches a query returns.
	MaxResults int

	// FullLoadLimit is how many top matches get full content per query.
	FullLoadLimit int

	// MinScore is the relevance floor below which content is never
	// materialized.
	MinScore float64

	// ExploreDepth is the default hop count for exploration.
	ExploreDepth int
}

// Default returns the configuration used when no environment overrides
// are set.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".recall"),
		SessionIdleTTL:   24 * time.Hour,
		CacheTTL:         time.Hour,
		MaxContentLength: 100_000,
		PreviewLength:    400,
		CandidateCap:     50,
		MaxResults:       10,
		FullLoadLimit:    3,
		MinScore:         0.35,
		ExploreDepth:     2,
	}
}

// Load builds a Config from defaults plus RECALL_* environment
// overrides. Malformed values are an error, not a silent fallback.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("RECALL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := durationVar(&cfg.SessionIdleTTL, "RECALL_SESSION_IDLE_TTL"); err != nil {
		return cfg, err
	}
	if err := durationVar(&cfg.CacheTTL, "RECALL_CACHE_TTL"); err != nil {
		return cfg, err
	}
	if err := intVar(&cfg.MaxContentLength, "RECALL_MAX_CONTENT_LENGTH"); err != nil {
		return cfg, err
	}
	if err := intVar(&cfg.PreviewLength, "RECALL_PREVIEW_LENGTH"); err != nil {
		return cfg, err
	}
	if err := intVar(&cfg.CandidateCap, "RECALL_CANDIDATE_CAP"); err != nil {
		return cfg, err
	}
	if err := intVar(&cfg.MaxResults, "RECALL_MAX_RESULTS"); err != nil {
		return cfg, err
	}
	if err := intVar(&cfg.FullLoadLimit, "RECALL_FULL_LOAD_LIMIT"); err != nil {
		return cfg, err
	}
	if err := floatVar(&cfg.MinScore, "RECALL_MIN_SCORE"); err != nil {
		return cfg, err
	}
	if err := intVar(&cfg.ExploreDepth, "RECALL_EXPLORE_DEPTH"); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func durationVar(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("config: %s: must be positive, got %q", key, v)
	}
	*dst = d
	return nil
}

func intVar(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("config: %s: must be positive, got %q", key, v)
	}
	*dst = n
	return nil
}

func floatVar(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("config: %s: must be in [0,1], got %q", key, v)
	}
	*dst = f
	return nil
}
