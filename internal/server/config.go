package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// TrustProxyHeaders keys rate limiting on X-Forwarded-For. Enable only
	// behind a proxy that overwrites the header.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from defaults, an optional YAML file, and
// BEACON_* environment variables (BEACON_SERVER_PORT=9090).
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 100)
	v.SetDefault("server.rate_limit_burst", 200)
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "beacon.db")

	v.SetDefault("plugins.notify.delivery_timeout", "10s")
	v.SetDefault("plugins.notify.rate_per_sec", 0.0)
	v.SetDefault("plugins.notify.rate_burst", 5)
	v.SetDefault("plugins.notify.max_concurrency", 8)
	v.SetDefault("plugins.notify.timezone", "UTC")
	v.SetDefault("plugins.uptime.max_workers", 10)
	v.SetDefault("plugins.uptime.default_timeout", "30s")
	v.SetDefault("plugins.uptime.insecure_skip_verify", false)
	v.SetDefault("plugins.agent.stale_multiplier", 5)
	v.SetDefault("plugins.agent.metrics_retention", "24h")
	v.SetDefault("plugins.agent.max_workers", 10)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.job_timeout", "5m")
	v.SetDefault("schedule.monitor_tick", "* * * * *")
	v.SetDefault("schedule.agent_tick", "* * * * *")
	v.SetDefault("schedule.daily_rollup", "5 0 * * *")
	v.SetDefault("schedule.metrics_prune", "5 */6 * * *")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("beacon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/beacon")
	}

	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Missing file is fine, defaults apply.
	}

	return v, nil
}
