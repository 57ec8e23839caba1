package notify

import "time"

// NotifyConfig holds the notify plugin settings under plugins.notify.
type NotifyConfig struct {
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	RatePerSec      float64       `mapstructure:"rate_per_sec"` // 0 disables the per-channel limiter
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	Timezone        string        `mapstructure:"timezone"` // used to format ${time}
}

func DefaultConfig() NotifyConfig {
	return NotifyConfig{
		DeliveryTimeout: 10 * time.Second,
		RatePerSec:      0,
		RateBurst:       5,
		MaxConcurrency:  8,
		Timezone:        "UTC",
	}
}
