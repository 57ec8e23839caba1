package schedule

import "time"

// Config holds the cron trigger settings under the schedule key.
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Timezone     string        `mapstructure:"timezone"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	MonitorTick  string        `mapstructure:"monitor_tick"`
	AgentTick    string        `mapstructure:"agent_tick"`
	DailyRollup  string        `mapstructure:"daily_rollup"`
	MetricsPrune string        `mapstructure:"metrics_prune"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Timezone:     "UTC",
		JobTimeout:   5 * time.Minute,
		MonitorTick:  "* * * * *",
		AgentTick:    "* * * * *",
		DailyRollup:  "5 0 * * *",
		MetricsPrune: "5 */6 * * *",
	}
}
