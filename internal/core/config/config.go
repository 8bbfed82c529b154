package config

import (
	"time"

	redisclient "github.com/vietanh/keeper/internal/infra/redis"
	"github.com/vietanh/keeper/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig        `yaml:"server"`
	Logging      LoggingConfig       `yaml:"logging"`
	Database     postgres.Config     `yaml:"database"`
	Redis        redisclient.Config  `yaml:"redis"`
	Integrations []IntegrationConfig `yaml:"integrations"`
	SyncQueue    QueueConfig         `yaml:"sync_queue"`
	Push         PushConfig          `yaml:"push"`
	Reminder     ReminderConfig      `yaml:"reminder"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// IntegrationConfig holds settings for one external integration pull.
type IntegrationConfig struct {
	Name         string        `yaml:"name"`
	URL          string        `yaml:"url"`
	PullInterval time.Duration `yaml:"pull_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	Healing      HealingConfig `yaml:"healing"`
}

// HealingConfig tunes the integration's auto-healing policy. Zero values
// use the policy defaults.
type HealingConfig struct {
	BaseBackoff             time.Duration `yaml:"base_backoff"`
	MaxBackoff              time.Duration `yaml:"max_backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitOpen             time.Duration `yaml:"circuit_open"`
	JitterRatio             float64       `yaml:"jitter_ratio"`
}

// QueueConfig tunes the offline mutation queue processor.
type QueueConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MaxRetries     int           `yaml:"max_retries"`
	BaseRetryDelay time.Duration `yaml:"base_retry_delay"`
	BatchSize      int           `yaml:"batch_size"`
}

// PushConfig tunes push delivery and notification dedupe.
type PushConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	Timeout      time.Duration `yaml:"timeout"`
	DedupeWindow time.Duration `yaml:"dedupe_window"`
}

// ReminderConfig tunes the deadline reminder worker.
type ReminderConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Window   time.Duration `yaml:"window"`
	Interval time.Duration `yaml:"interval"`
}
