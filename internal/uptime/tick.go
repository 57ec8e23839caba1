package uptime

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/HerbHall/beacon/internal/notify"
	"github.com/HerbHall/beacon/pkg/models"
	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrMonitorNotFound is returned by CheckNow for unknown or foreign monitors.
var ErrMonitorNotFound = errors.New("monitor not found")

// TickSummary reports one pass over the due monitors.
type TickSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Checked   int           `json:"checked"`
	Changed   int           `json:"changed"`
	Notified  int           `json:"notified"`
}

// ManualCheck is the response of an on-demand re-check.
type ManualCheck struct {
	Result   CheckResult `json:"result"`
	Notified bool        `json:"notified"`
}

// due reports whether mon should be probed at now: never checked, or its
// interval has fully elapsed.
func due(mon *models.Monitor, now time.Time) bool {
	if mon.LastChecked == nil {
		return true
	}
	interval := mon.Interval
	if interval <= 0 {
		interval = models.DefaultMonitorInterval
	}
	return now.Sub(*mon.LastChecked) >= time.Duration(interval)*time.Second
}

// RunTick probes every due monitor concurrently, publishes status changes
// and evaluates notifications for them. One monitor's failure, including a
// panic, never affects the others. A summary is always returned.
func (m *Module) RunTick(ctx context.Context) TickSummary {
	m.inflight.Add(1)
	defer m.inflight.Done()

	sum := TickSummary{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	defer func() {
		sum.Duration = time.Since(sum.StartedAt)
		tickDuration.Observe(sum.Duration.Seconds())
		m.lastTick.Store(&sum)
		if m.bus != nil {
			// Summaries are informational; subscribers must not hold up the tick.
			m.bus.PublishAsync(ctx, plugin.Event{Topic: TopicTickCompleted, Source: "uptime", Payload: sum})
		}
	}()

	if m.store == nil {
		return sum
	}
	monitors, err := m.store.ListActiveMonitors(ctx)
	if err != nil {
		m.logger.Warn("failed to load monitors", zap.String("run_id", sum.RunID), zap.Error(err))
		return sum
	}

	now := time.Now().UTC()
	var checked, changed, notified atomic.Int32
	var g errgroup.Group
	g.SetLimit(max(m.cfg.MaxWorkers, 1))
	for i := range monitors {
		mon := monitors[i]
		if !due(&mon, now) {
			continue
		}
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					targetPanics.Inc()
					m.logger.Error("monitor processing panicked",
						zap.String("run_id", sum.RunID),
						zap.Int64("monitor_id", mon.ID),
						zap.Any("panic", p),
					)
				}
			}()
			res := m.checker.Check(ctx, &mon)
			if res.Aborted {
				return nil
			}
			checked.Add(1)
			if !res.Changed() {
				return nil
			}
			changed.Add(1)
			// The new status is already stored, so the transition must be
			// announced even if ctx ends now.
			if m.handleTransition(context.WithoutCancel(ctx), &mon, res) {
				notified.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Checked = int(checked.Load())
	sum.Changed = int(changed.Load())
	sum.Notified = int(notified.Load())
	m.logger.Info("monitor tick completed",
		zap.String("run_id", sum.RunID),
		zap.Int("checked", sum.Checked),
		zap.Int("changed", sum.Changed),
		zap.Int("notified", sum.Notified),
	)
	return sum
}

// CheckNow re-probes one monitor owned by userID and evaluates the
// notification policy against the status it had before.
func (m *Module) CheckNow(ctx context.Context, userID, monitorID int64) (*ManualCheck, error) {
	if m.store == nil {
		return nil, errors.New("uptime store not available")
	}
	mon, err := m.store.GetMonitor(ctx, userID, monitorID)
	if err != nil {
		return nil, err
	}
	if mon == nil {
		return nil, ErrMonitorNotFound
	}
	res := m.checker.Check(ctx, mon)
	if res.Aborted {
		return nil, ctx.Err()
	}
	out := &ManualCheck{Result: res}
	if res.Changed() {
		out.Notified = m.handleTransition(context.WithoutCancel(ctx), mon, res)
	}
	return out, nil
}

// handleTransition publishes the change and sends a notification when the
// policy allows it. It reports whether a notification was delivered.
func (m *Module) handleTransition(ctx context.Context, mon *models.Monitor, res CheckResult) bool {
	transitionsTotal.WithLabelValues(res.Status).Inc()
	m.logger.Info("monitor status changed",
		zap.Int64("monitor_id", mon.ID),
		zap.String("name", mon.Name),
		zap.String("from", res.PreviousStatus),
		zap.String("to", res.Status),
	)
	m.publish(ctx, TopicStatusChanged, StatusChangedEvent{
		UserID:         mon.CreatedBy,
		MonitorID:      mon.ID,
		Name:           mon.Name,
		URL:            mon.URL,
		Status:         res.Status,
		PreviousStatus: res.PreviousStatus,
		StatusCode:     res.StatusCode,
		ResponseTime:   res.ResponseTime,
		Error:          res.Error,
		CheckedAt:      res.CheckedAt,
	})

	n := m.notifier()
	if n == nil {
		return false
	}
	decision, err := n.ShouldNotify(ctx, mon.CreatedBy, models.TargetMonitor, mon.ID, res.PreviousStatus, res.Status)
	if err != nil {
		m.logger.Warn("notification policy failed",
			zap.Int64("monitor_id", mon.ID),
			zap.Error(err),
		)
		return false
	}
	if !decision.Send {
		m.logger.Debug("status change does not notify", zap.Int64("monitor_id", mon.ID))
		return false
	}

	vars := notify.MonitorVariables(notify.MonitorTransition{
		Monitor:        *mon,
		Status:         res.Status,
		PreviousStatus: res.PreviousStatus,
		ResponseTime:   res.ResponseTime,
		StatusCode:     res.StatusCode,
		Error:          res.Error,
		At:             res.CheckedAt,
	}, n.Location())
	sent := n.Send(ctx, notify.SendRequest{
		Type:       models.NotificationTypeMonitor,
		TargetID:   mon.ID,
		Variables:  vars,
		ChannelIDs: decision.Channels,
		UserID:     mon.CreatedBy,
	})
	return sent.Success
}

func (m *Module) publish(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, plugin.Event{Topic: topic, Source: "uptime", Payload: payload}); err != nil {
		m.logger.Debug("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
