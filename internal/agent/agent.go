// Package agent tracks remote host agents by heartbeat. It marks silent
// agents offline, ingests resource samples and raises offline, recovery and
// threshold notifications.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HerbHall/beacon/internal/notify"
	"github.com/HerbHall/beacon/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// RoleAgentManagement is the role the agent module fills.
const RoleAgentManagement = "agent_management"

// Module implements the agent plugin.
type Module struct {
	logger  *zap.Logger
	cfg     AgentConfig
	store   *AgentStore
	bus     plugin.EventBus
	plugins plugin.PluginResolver
	now     func() time.Time

	// notify overrides plugin resolution; set by tests.
	notify notify.Notifier

	inflight sync.WaitGroup
	lastTick atomic.Pointer[TickSummary]
}

// New creates a new agent plugin instance.
func New() *Module {
	return &Module{now: time.Now}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "agent",
		Version:      "0.1.0",
		Description:  "Agent heartbeat tracking, metric ingestion and threshold alerts",
		Dependencies: []string{"notify"},
		Roles:        []string{RoleAgentManagement},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.plugins = deps.Plugins
	if deps.Bus != nil {
		m.bus = deps.Bus
	}

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal agent config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "agent", migrations()); err != nil {
			return fmt.Errorf("agent migrations: %w", err)
		}
		m.store = NewAgentStore(deps.Store.DB())
	}

	m.logger.Info("agent module initialized",
		zap.Int("stale_multiplier", m.cfg.StaleMultiplier),
		zap.Duration("metrics_retention", m.cfg.MetricsRetention),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("agent module started")
	return nil
}

// Stop waits for in-flight ticks and reports, or until ctx expires.
func (m *Module) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("agent stop timed out waiting for in-flight work")
	}
	m.logger.Info("agent module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.StaleMultiplier < 1 {
		return fmt.Errorf("agent: stale_multiplier must be at least 1, got %d", m.cfg.StaleMultiplier)
	}
	if m.cfg.MetricsRetention <= 0 {
		return fmt.Errorf("agent: metrics_retention must be positive")
	}
	if m.cfg.MaxWorkers < 1 {
		return fmt.Errorf("agent: max_workers must be at least 1, got %d", m.cfg.MaxWorkers)
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{}
	if last := m.lastTick.Load(); last != nil {
		details["last_tick"] = last.StartedAt.Format(time.RFC3339)
		details["marked_offline"] = strconv.Itoa(last.MarkedOffline)
	}
	if m.store == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "store not available", Details: details}
	}
	if m.notifier() == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "no notification provider", Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// Store returns the agent store, nil when no database is configured.
func (m *Module) Store() *AgentStore { return m.store }

// notifier resolves the notification provider at use time; the registry
// holds its lock during Init and Start.
func (m *Module) notifier() notify.Notifier {
	if m.notify != nil {
		return m.notify
	}
	return notify.Resolve(m.plugins)
}

func (m *Module) clock() time.Time {
	if m.now == nil {
		return time.Now().UTC()
	}
	return m.now().UTC()
}

func (m *Module) publish(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, plugin.Event{Topic: topic, Source: "agent", Payload: payload}); err != nil {
		m.logger.Debug("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
