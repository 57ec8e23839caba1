package uptime

import "time"

// UptimeConfig holds the uptime plugin settings under plugins.uptime.
type UptimeConfig struct {
	MaxWorkers         int           `mapstructure:"max_workers"`
	DefaultTimeout     time.Duration `mapstructure:"default_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

func DefaultConfig() UptimeConfig {
	return UptimeConfig{
		MaxWorkers:     10,
		DefaultTimeout: 30 * time.Second,
	}
}
