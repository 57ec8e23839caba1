package agent

import "time"

// AgentConfig holds the agent plugin settings under plugins.agent.
type AgentConfig struct {
	// StaleMultiplier is how many keepalive intervals may pass without a
	// heartbeat before an agent is marked inactive.
	StaleMultiplier  int           `mapstructure:"stale_multiplier"`
	MetricsRetention time.Duration `mapstructure:"metrics_retention"`
	MaxWorkers       int           `mapstructure:"max_workers"`
}

func DefaultConfig() AgentConfig {
	return AgentConfig{
		StaleMultiplier:  5,
		MetricsRetention: 24 * time.Hour,
		MaxWorkers:       10,
	}
}
