// Package notify decides when a state change deserves a notification and
// delivers it: layered settings, template rendering, channel adapters and
// the delivery audit trail.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/beacon/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
	_ Notifier             = (*Module)(nil)
)

// RoleNotification is the role the notify module fills.
const RoleNotification = "notification"

// Notifier is what probing modules need from notify.
type Notifier interface {
	ShouldNotify(ctx context.Context, userID int64, targetType string, targetID int64, prev, cur string) (Decision, error)
	CheckThreshold(ctx context.Context, userID, agentID int64, metric string, value float64) (ThresholdDecision, error)
	Send(ctx context.Context, req SendRequest) SendResult
	Location() *time.Location
}

// Module implements the notify plugin.
type Module struct {
	logger     *zap.Logger
	cfg        NotifyConfig
	loc        *time.Location
	store      *NotifyStore
	adapters   *AdapterRegistry
	policy     *Policy
	dispatcher *Dispatcher
}

// New creates a new notify plugin instance.
func New() *Module {
	return &Module{loc: time.UTC}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "notify",
		Version:     "0.1.0",
		Description: "Notification policy, rendering and channel delivery",
		Roles:       []string{RoleNotification},
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal notify config: %w", err)
		}
	}

	m.loc = time.UTC
	if loc, err := time.LoadLocation(m.cfg.Timezone); err == nil {
		m.loc = loc
	} else {
		m.logger.Warn("unknown notification timezone, using UTC",
			zap.String("timezone", m.cfg.Timezone),
			zap.Error(err),
		)
	}

	m.adapters = NewAdapterRegistry(m.logger, m.cfg.RatePerSec, m.cfg.RateBurst, m.cfg.DeliveryTimeout)
	RegisterBuiltinAdapters(m.adapters, &http.Client{})

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "notify", migrations()); err != nil {
			return fmt.Errorf("notify migrations: %w", err)
		}
		m.store = NewNotifyStore(deps.Store.DB())
		m.policy = NewPolicy(m.store, m.logger)
		var bus plugin.Publisher
		if deps.Bus != nil {
			bus = deps.Bus
		}
		m.dispatcher = NewDispatcher(m.store, m.adapters, bus, m.logger, m.cfg.MaxConcurrency)
	}

	m.logger.Info("notify module initialized",
		zap.Strings("channel_types", m.adapters.Types()),
		zap.Duration("delivery_timeout", m.cfg.DeliveryTimeout),
		zap.Float64("rate_per_sec", m.cfg.RatePerSec),
		zap.String("timezone", m.loc.String()),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("notify module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("notify module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.MaxConcurrency < 1 {
		return fmt.Errorf("notify: max_concurrency must be at least 1, got %d", m.cfg.MaxConcurrency)
	}
	if m.cfg.RateBurst < 1 {
		return fmt.Errorf("notify: rate_burst must be at least 1, got %d", m.cfg.RateBurst)
	}
	if m.cfg.DeliveryTimeout < 0 {
		return fmt.Errorf("notify: delivery_timeout must not be negative")
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	types := 0
	if m.adapters != nil {
		types = len(m.adapters.Types())
	}
	details := map[string]string{
		"channel_types": strconv.Itoa(types),
		"timezone":      m.Location().String(),
	}
	if m.store == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "store not available", Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// Adapters exposes the adapter registry so callers can add channel types.
func (m *Module) Adapters() *AdapterRegistry { return m.adapters }

// Location is the timezone used for the ${time} variable.
func (m *Module) Location() *time.Location {
	if m.loc == nil {
		return time.UTC
	}
	return m.loc
}

// ShouldNotify implements Notifier.
func (m *Module) ShouldNotify(ctx context.Context, userID int64, targetType string, targetID int64, prev, cur string) (Decision, error) {
	if m.policy == nil {
		return Decision{}, nil
	}
	return m.policy.ShouldNotify(ctx, userID, targetType, targetID, prev, cur)
}

// CheckThreshold implements Notifier.
func (m *Module) CheckThreshold(ctx context.Context, userID, agentID int64, metric string, value float64) (ThresholdDecision, error) {
	if m.policy == nil {
		return ThresholdDecision{}, nil
	}
	return m.policy.CheckThreshold(ctx, userID, agentID, metric, value)
}

// Send implements Notifier.
func (m *Module) Send(ctx context.Context, req SendRequest) SendResult {
	if m.dispatcher == nil {
		return SendResult{Results: []Result{}}
	}
	return m.dispatcher.Send(ctx, req)
}

// Resolve finds the notify module through a plugin resolver. It returns nil
// when the resolver is nil or no notification provider is registered.
func Resolve(plugins plugin.PluginResolver) Notifier {
	if plugins == nil {
		return nil
	}
	for _, p := range plugins.ResolveByRole(RoleNotification) {
		if n, ok := p.(Notifier); ok {
			return n
		}
	}
	return nil
}
