package schedule

import (
	"context"
	"time"

	"github.com/HerbHall/beacon/internal/agent"
	"github.com/HerbHall/beacon/internal/uptime"
)

// Jobs returns the standard job set for the given modules. A nil module
// contributes no jobs. Ticks run without a deadline so that only each
// target's own timeout ends a probe; housekeeping jobs are bounded by
// cfg.JobTimeout.
func Jobs(cfg Config, up *uptime.Module, ag *agent.Module) []Job {
	housekeeping := cfg.JobTimeout
	if housekeeping <= 0 {
		housekeeping = DefaultConfig().JobTimeout
	}
	var jobs []Job
	if up != nil {
		jobs = append(jobs,
			Job{Name: "monitor_tick", Spec: cfg.MonitorTick, Run: func(ctx context.Context) error {
				up.RunTick(ctx)
				return nil
			}},
			Job{Name: "daily_rollup", Spec: cfg.DailyRollup, Timeout: housekeeping, Run: func(ctx context.Context) error {
				_, err := up.RunDailyRollup(ctx, time.Now())
				return err
			}},
		)
	}
	if ag != nil {
		jobs = append(jobs,
			Job{Name: "agent_tick", Spec: cfg.AgentTick, Run: func(ctx context.Context) error {
				ag.RunTick(ctx)
				return nil
			}},
			Job{Name: "metrics_prune", Spec: cfg.MetricsPrune, Timeout: housekeeping, Run: func(ctx context.Context) error {
				_, err := ag.PruneMetrics(ctx)
				return err
			}},
		)
	}
	return jobs
}
