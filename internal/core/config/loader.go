package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for i := range cfg.Integrations {
		if cfg.Integrations[i].Name == "" {
			return nil, fmt.Errorf("integration %d: name is required", i)
		}
		if cfg.Integrations[i].PullInterval == 0 {
			cfg.Integrations[i].PullInterval = 5 * time.Minute
		}
		if cfg.Integrations[i].Timeout == 0 {
			cfg.Integrations[i].Timeout = 30 * time.Second
		}
	}

	if cfg.SyncQueue.Interval == 0 {
		cfg.SyncQueue.Interval = 30 * time.Second
	}
	if cfg.Push.DedupeWindow == 0 {
		cfg.Push.DedupeWindow = 24 * time.Hour
	}
	if cfg.Reminder.Window == 0 {
		cfg.Reminder.Window = 24 * time.Hour
	}
	if cfg.Reminder.Interval == 0 {
		cfg.Reminder.Interval = 15 * time.Minute
	}

	return &cfg, nil
}
