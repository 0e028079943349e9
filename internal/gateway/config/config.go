package config

import (
	"time"

	"rivalwatch/pkg/config"
)

// Scheduler holds the configuration for the cron-driven run scheduler.
type Scheduler struct {
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	DebounceWindow  time.Duration `mapstructure:"debounce_window"`
}

// Config holds the full configuration for the gateway service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Scheduler Scheduler       `mapstructure:"scheduler"`
}

// Load loads the gateway configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
