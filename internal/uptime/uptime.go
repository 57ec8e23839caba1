// Package uptime probes HTTP monitors on their intervals, records a short
// status history with daily rollups, and hands status changes to the
// notification module.
package uptime

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

// RoleMonitoring is the role the uptime module fills.
const RoleMonitoring = "monitoring"

// Module implements the uptime plugin.
type Module struct {
	logger  *zap.Logger
	cfg     UptimeConfig
	store   *UptimeStore
	checker *Checker
	bus     plugin.EventBus
	plugins plugin.PluginResolver

	// notify overrides plugin resolution; set by tests.
	notify notify.Notifier

	inflight sync.WaitGroup
	lastTick atomic.Pointer[TickSummary]
}

// New creates a new uptime plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "uptime",
		Version:      "0.1.0",
		Description:  "HTTP uptime monitoring with status history and daily rollups",
		Dependencies: []string{"notify"},
		Roles:        []string{RoleMonitoring},
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
			return fmt.Errorf("unmarshal uptime config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "uptime", migrations()); err != nil {
			return fmt.Errorf("uptime migrations: %w", err)
		}
		m.store = NewUptimeStore(deps.Store.DB())
	}
	m.checker = NewChecker(NewProber(m.cfg.DefaultTimeout, m.cfg.InsecureSkipVerify, m.logger), m.store, m.logger)

	m.logger.Info("uptime module initialized",
		zap.Int("max_workers", m.cfg.MaxWorkers),
		zap.Duration("default_timeout", m.cfg.DefaultTimeout),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("uptime module started")
	return nil
}

// Stop waits for in-flight ticks and rollups, or until ctx expires.
func (m *Module) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("uptime stop timed out waiting for in-flight work")
	}
	m.logger.Info("uptime module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.MaxWorkers < 1 {
		return fmt.Errorf("uptime: max_workers must be at least 1, got %d", m.cfg.MaxWorkers)
	}
	if m.cfg.DefaultTimeout <= 0 {
		return fmt.Errorf("uptime: default_timeout must be positive")
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{}
	if last := m.lastTick.Load(); last != nil {
		details["last_tick"] = last.StartedAt.Format(time.RFC3339)
		details["last_checked"] = strconv.Itoa(last.Checked)
	}
	if m.store == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "store not available", Details: details}
	}
	if m.notifier() == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "no notification provider", Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// Store returns the monitor store, nil when no database is configured.
func (m *Module) Store() *UptimeStore { return m.store }

// notifier resolves the notification provider at use time; the registry
// holds its lock during Init and Start.
func (m *Module) notifier() notify.Notifier {
	if m.notify != nil {
		return m.notify
	}
	return notify.Resolve(m.plugins)
}
