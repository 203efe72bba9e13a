package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds process configuration, read from the environment.
// A local .env file is honored when present.
type Config struct {
	// Model is the Gemini model used for statement analysis.
	Model string `env:"LEDGER_MODEL" envDefault:"gemini-2.5-flash"`

	// CutoffDay shifts statements dated before this day of month into the
	// previous billing period. Zero disables the shift.
	CutoffDay int `env:"LEDGER_CUTOFF_DAY" envDefault:"0"`

	// SnapshotURI is where the ledger snapshot is persisted. Either a local
	// file path or a gs://bucket/object URI.
	SnapshotURI string `env:"LEDGER_SNAPSHOT" envDefault:"statement-ledger.json"`

	// Passwords are preset candidate passwords tried, in order, when a
	// statement PDF is encrypted.
	Passwords []string `env:"LEDGER_PASSWORDS" envSeparator:","`

	// RasterScale is the scale factor used when rasterizing pages of
	// image-dominant documents.
	RasterScale float64 `env:"LEDGER_RASTER_SCALE" envDefault:"2.0"`

	// NotionToken and NotionDatabaseID enable the optional Notion export.
	NotionToken      string `env:"NOTION_TOKEN"`
	NotionDatabaseID string `env:"NOTION_DATABASE_ID"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if cfg.CutoffDay < 0 || cfg.CutoffDay > 31 {
		return nil, fmt.Errorf("config: cutoff day %d out of range", cfg.CutoffDay)
	}
	if cfg.RasterScale <= 0 {
		return nil, fmt.Errorf("config: raster scale must be positive, got %v", cfg.RasterScale)
	}

	return cfg, nil
}
