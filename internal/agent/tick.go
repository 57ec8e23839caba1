package agent

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

// TickSummary reports one staleness pass over the active agents.
type TickSummary struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Checked       int           `json:"checked"`
	MarkedOffline int           `json:"marked_offline"`
	Notified      int           `json:"notified"`
}

// PruneSummary reports one metric retention pass.
type PruneSummary struct {
	Before  time.Time `json:"before"`
	Deleted int64     `json:"deleted"`
}

// stale reports whether more than multiplier keepalive intervals have
// passed since the agent's last heartbeat.
func stale(a *models.Agent, now time.Time, multiplier int) bool {
	keepalive := a.Keepalive
	if keepalive <= 0 {
		keepalive = models.DefaultAgentKeepalive
	}
	limit := time.Duration(multiplier*keepalive) * time.Second
	return now.Sub(a.UpdatedAt) > limit
}

// RunTick marks every active agent whose heartbeat is stale as inactive and
// evaluates the offline notification for it. The previous status is
// implicitly online since only active agents are considered.
func (m *Module) RunTick(ctx context.Context) TickSummary {
	m.inflight.Add(1)
	defer m.inflight.Done()

	now := m.clock()
	sum := TickSummary{RunID: uuid.NewString(), StartedAt: now}
	start := time.Now()
	defer func() {
		sum.Duration = time.Since(start)
		tickDuration.Observe(sum.Duration.Seconds())
		m.lastTick.Store(&sum)
		if m.bus != nil {
			m.bus.PublishAsync(ctx, plugin.Event{Topic: TopicTickCompleted, Source: "agent", Payload: sum})
		}
	}()

	if m.store == nil {
		return sum
	}
	agents, err := m.store.ListActiveAgents(ctx)
	if err != nil {
		m.logger.Warn("failed to load agents", zap.String("run_id", sum.RunID), zap.Error(err))
		return sum
	}

	var offline, notified atomic.Int32
	var g errgroup.Group
	g.SetLimit(max(m.cfg.MaxWorkers, 1))
	for i := range agents {
		a := agents[i]
		if !stale(&a, now, m.cfg.StaleMultiplier) {
			continue
		}
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					targetPanics.Inc()
					m.logger.Error("agent processing panicked",
						zap.String("run_id", sum.RunID),
						zap.Int64("agent_id", a.ID),
						zap.Any("panic", p),
					)
				}
			}()
			marked, err := m.store.MarkInactive(ctx, a.ID)
			if err != nil {
				m.logger.Warn("failed to mark agent inactive", zap.Int64("agent_id", a.ID), zap.Error(err))
				return nil
			}
			if !marked {
				return nil
			}
			offline.Add(1)
			if m.handleStatusChange(ctx, &a, false, now) {
				notified.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Checked = len(agents)
	sum.MarkedOffline = int(offline.Load())
	sum.Notified = int(notified.Load())
	m.logger.Info("agent tick completed",
		zap.String("run_id", sum.RunID),
		zap.Int("checked", sum.Checked),
		zap.Int("marked_offline", sum.MarkedOffline),
		zap.Int("notified", sum.Notified),
	)
	return sum
}

// PruneMetrics deletes samples older than the retention window.
func (m *Module) PruneMetrics(ctx context.Context) (PruneSummary, error) {
	if m.store == nil {
		return PruneSummary{}, errors.New("agent store not available")
	}
	m.inflight.Add(1)
	defer m.inflight.Done()

	sum := PruneSummary{Before: m.clock().Add(-m.cfg.MetricsRetention)}
	n, err := m.store.PruneMetrics(ctx, sum.Before)
	if err != nil {
		m.logger.Warn("metric pruning failed", zap.Error(err))
		return sum, err
	}
	sum.Deleted = n
	metricsPruned.Add(float64(n))
	m.logger.Info("agent metrics pruned", zap.Int64("deleted", n), zap.Time("before", sum.Before))
	return sum, nil
}

// handleStatusChange publishes an offline or online transition and sends a
// notification when the policy allows it. It reports whether a
// notification was delivered.
func (m *Module) handleStatusChange(ctx context.Context, a *models.Agent, online bool, at time.Time) bool {
	prev, cur := notify.StatusOnline, notify.StatusOffline
	if online {
		prev, cur = notify.StatusOffline, notify.StatusOnline
	}
	transitionsTotal.WithLabelValues(cur).Inc()
	m.logger.Info("agent status changed",
		zap.Int64("agent_id", a.ID),
		zap.String("name", a.Name),
		zap.String("from", prev),
		zap.String("to", cur),
	)
	m.publish(ctx, TopicStatusChanged, StatusChangedEvent{
		UserID:         a.CreatedBy,
		AgentID:        a.ID,
		Name:           a.Name,
		Status:         cur,
		PreviousStatus: prev,
		LastSeen:       a.UpdatedAt,
	})

	n := m.notifier()
	if n == nil {
		return false
	}
	decision, err := n.ShouldNotify(ctx, a.CreatedBy, models.TargetAgent, a.ID, prev, cur)
	if err != nil {
		m.logger.Warn("notification policy failed", zap.Int64("agent_id", a.ID), zap.Error(err))
		return false
	}
	if !decision.Send {
		m.logger.Debug("agent status change does not notify", zap.Int64("agent_id", a.ID))
		return false
	}
	res := n.Send(ctx, notify.SendRequest{
		Type:       models.NotificationTypeAgent,
		TargetID:   a.ID,
		Variables:  notify.AgentStatusVariables(*a, online, at, n.Location()),
		ChannelIDs: decision.Channels,
		UserID:     a.CreatedBy,
	})
	return res.Success
}
