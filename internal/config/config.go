// Package config loads the engine configuration from a TOML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all finance-alerts configuration.
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Archive ArchiveConfig `toml:"archive"`
}

// EngineConfig holds the evaluation and alerting parameters.
type EngineConfig struct {
	// Workers bounds the per-user fan-out of a job run.
	Workers int `toml:"workers"`

	// BudgetThresholds are the percentage levels that trigger budget
	// alerts, ascending.
	BudgetThresholds []float64 `toml:"budget_thresholds"`

	// GoalLookaheadDays is how far ahead of a goal's target date
	// reminders start.
	GoalLookaheadDays int `toml:"goal_lookahead_days"`

	// AnomalyMultiplier fires a transaction alert when an expense
	// exceeds multiplier x the trailing median.
	AnomalyMultiplier float64 `toml:"anomaly_multiplier"`

	// AnomalyMinHistory is the minimum number of historical expenses
	// required before anomaly detection runs.
	AnomalyMinHistory int `toml:"anomaly_min_history"`

	// AnomalyHistoryDays is the trailing window the median is taken over.
	AnomalyHistoryDays int `toml:"anomaly_history_days"`

	// RecentWindowHours is how far back a transaction still counts as
	// newly observed.
	RecentWindowHours int `toml:"recent_window_hours"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `toml:"port"`

	// TriggerSecret guards the job trigger endpoint. Empty disables the
	// check. ALERTS_TRIGGER_SECRET overrides the file value.
	TriggerSecret string `toml:"trigger_secret,omitempty"`
}

// StoreBackend selects the repository implementation.
type StoreBackend string

const (
	BackendBigQuery StoreBackend = "bigquery"
	BackendSQLite   StoreBackend = "sqlite"
)

// StoreConfig holds backing-store settings.
type StoreConfig struct {
	Backend    StoreBackend `toml:"backend"`
	ProjectID  string       `toml:"project_id,omitempty"`
	DatasetID  string       `toml:"dataset_id,omitempty"`
	SQLitePath string       `toml:"sqlite_path,omitempty"`
}

// ArchiveConfig holds run-report archival settings. An empty bucket
// disables archival.
type ArchiveConfig struct {
	Bucket string `toml:"bucket,omitempty"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Workers:            8,
			BudgetThresholds:   []float64{80, 100},
			GoalLookaheadDays:  7,
			AnomalyMultiplier:  3,
			AnomalyMinHistory:  5,
			AnomalyHistoryDays: 30,
			RecentWindowHours:  24,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Store: StoreConfig{
			Backend:    BackendSQLite,
			DatasetID:  "finance",
			SQLitePath: "finance-alerts.db",
		},
	}
}

// Load reads the config file at path, or ALERTS_CONFIG, or falls back to
// defaults when neither exists. Environment secrets always win over file
// values.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("ALERTS_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("Load: decoding %s: %w", path, err)
		}
	}

	if secret := os.Getenv("ALERTS_TRIGGER_SECRET"); secret != "" {
		cfg.Server.TriggerSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Engine.Workers < 1 {
		return fmt.Errorf("Validate: engine.workers must be >= 1, got %d", c.Engine.Workers)
	}
	if len(c.Engine.BudgetThresholds) == 0 {
		return fmt.Errorf("Validate: engine.budget_thresholds must not be empty")
	}
	for i, t := range c.Engine.BudgetThresholds {
		if t <= 0 {
			return fmt.Errorf("Validate: engine.budget_thresholds[%d] must be positive, got %g", i, t)
		}
		if i > 0 && t <= c.Engine.BudgetThresholds[i-1] {
			return fmt.Errorf("Validate: engine.budget_thresholds must be strictly ascending")
		}
	}
	if c.Engine.AnomalyMultiplier <= 1 {
		return fmt.Errorf("Validate: engine.anomaly_multiplier must be > 1, got %g", c.Engine.AnomalyMultiplier)
	}
	if c.Engine.GoalLookaheadDays < 0 {
		return fmt.Errorf("Validate: engine.goal_lookahead_days must be >= 0")
	}
	switch c.Store.Backend {
	case BackendBigQuery:
		if c.Store.ProjectID == "" {
			return fmt.Errorf("Validate: store.project_id is required for the bigquery backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("Validate: store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("Validate: unknown store.backend %q", c.Store.Backend)
	}
	return nil
}
