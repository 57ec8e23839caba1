package uptime

import (
	"context"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
)

// CheckResult is a probe outcome together with the status the monitor had
// before it.
type CheckResult struct {
	MonitorID      int64     `json:"monitor_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	ResponseTime   int64     `json:"response_time"`
	StatusCode     int       `json:"status_code"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
	Aborted        bool      `json:"-"`
}

// Changed reports whether the probe moved the monitor to a new status.
func (r CheckResult) Changed() bool {
	return r.Status != r.PreviousStatus
}

// Checker probes a monitor and persists the outcome on a best-effort basis.
type Checker struct {
	prober *Prober
	store  *UptimeStore
	logger *zap.Logger
}

func NewChecker(prober *Prober, store *UptimeStore, logger *zap.Logger) *Checker {
	return &Checker{prober: prober, store: store, logger: logger}
}

// Check probes mon and records the result. The history insert and the
// monitor update are independent: a failure in either is logged and the
// probe result is returned regardless. An aborted probe records nothing and
// reports no change.
func (c *Checker) Check(ctx context.Context, mon *models.Monitor) CheckResult {
	start := time.Now()
	probe := c.prober.Probe(ctx, mon)
	if probe.Aborted {
		c.logger.Debug("probe aborted, result discarded",
			zap.Int64("monitor_id", mon.ID),
			zap.String("reason", probe.Error),
		)
		return CheckResult{
			MonitorID:      mon.ID,
			Status:         mon.Status,
			PreviousStatus: mon.Status,
			Aborted:        true,
		}
	}
	probeDuration.Observe(time.Since(start).Seconds())
	probesTotal.WithLabelValues(probe.Status).Inc()

	res := CheckResult{
		MonitorID:      mon.ID,
		Status:         probe.Status,
		PreviousStatus: mon.Status,
		ResponseTime:   probe.ResponseTime,
		StatusCode:     probe.StatusCode,
		Error:          probe.Error,
		CheckedAt:      time.Now().UTC(),
	}
	if c.store == nil {
		return res
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := c.store.InsertCheck(persistCtx, &models.MonitorCheck{
		MonitorID:    mon.ID,
		Status:       res.Status,
		ResponseTime: res.ResponseTime,
		StatusCode:   res.StatusCode,
		Error:        res.Error,
		Timestamp:    res.CheckedAt,
	}); err != nil {
		c.logger.Warn("failed to record status history",
			zap.Int64("monitor_id", mon.ID),
			zap.Error(err),
		)
	}
	if err := c.store.UpdateMonitorStatus(persistCtx, mon.ID, res.Status, res.ResponseTime, res.CheckedAt); err != nil {
		c.logger.Warn("failed to update monitor status",
			zap.Int64("monitor_id", mon.ID),
			zap.Error(err),
		)
	}
	return res
}
