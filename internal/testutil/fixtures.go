// Package testutil holds fixture builders shared by package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/beacon/pkg/models"
)

// NewMonitor returns an active Monitor with sensible defaults, suitable for
// test fixtures. Override individual fields with options.
func NewMonitor(opts ...func(*models.Monitor)) models.Monitor {
	m := models.Monitor{
		Name:           "monitor-" + uuid.New().String()[:8],
		URL:            "http://127.0.0.1/health",
		Method:         "GET",
		Interval:       models.DefaultMonitorInterval,
		Timeout:        models.DefaultMonitorTimeout,
		ExpectedStatus: models.DefaultMonitorExpectedStatus,
		Active:         true,
		CreatedBy:      1,
		CreatedAt:      time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// WithURL sets the monitor URL.
func WithURL(url string) func(*models.Monitor) {
	return func(m *models.Monitor) { m.URL = url }
}

// WithMonitorStatus sets the persisted monitor status.
func WithMonitorStatus(s string) func(*models.Monitor) {
	return func(m *models.Monitor) { m.Status = s }
}

// WithExpectedStatus sets the expected HTTP status (exact or class digit).
func WithExpectedStatus(code int) func(*models.Monitor) {
	return func(m *models.Monitor) { m.ExpectedStatus = code }
}

// WithLastChecked sets the monitor's last_checked timestamp.
func WithLastChecked(t time.Time) func(*models.Monitor) {
	return func(m *models.Monitor) { m.LastChecked = &t }
}

// WithMonitorOwner sets created_by.
func WithMonitorOwner(userID int64) func(*models.Monitor) {
	return func(m *models.Monitor) { m.CreatedBy = userID }
}

// NewAgent returns an active Agent that heartbeated just now.
func NewAgent(opts ...func(*models.Agent)) models.Agent {
	now := time.Now().UTC()
	a := models.Agent{
		Name:        "agent-" + uuid.New().String()[:8],
		Keepalive:   models.DefaultAgentKeepalive,
		UpdatedAt:   now,
		Status:      models.AgentStatusActive,
		Hostname:    "test-host",
		IPAddresses: `["192.168.1.100"]`,
		OS:          "linux",
		CreatedBy:   1,
		CreatedAt:   now,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithAgentStatus sets the stored agent status.
func WithAgentStatus(s string) func(*models.Agent) {
	return func(a *models.Agent) { a.Status = s }
}

// WithUpdatedAt sets the agent's last heartbeat.
func WithUpdatedAt(t time.Time) func(*models.Agent) {
	return func(a *models.Agent) { a.UpdatedAt = t }
}

// WithKeepalive sets the agent keepalive in seconds.
func WithKeepalive(seconds int) func(*models.Agent) {
	return func(a *models.Agent) { a.Keepalive = seconds }
}

// NewChannel returns an enabled webhook channel pointing at url.
func NewChannel(url string, opts ...func(*models.NotificationChannel)) models.NotificationChannel {
	c := models.NotificationChannel{
		Name:      "channel-" + uuid.New().String()[:8],
		Type:      "webhook",
		Config:    `{"url":"` + url + `"}`,
		Enabled:   true,
		CreatedBy: 1,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithChannelType sets the adapter key and raw config JSON.
func WithChannelType(typ, config string) func(*models.NotificationChannel) {
	return func(c *models.NotificationChannel) {
		c.Type = typ
		c.Config = config
	}
}

// WithChannelEnabled toggles the channel.
func WithChannelEnabled(enabled bool) func(*models.NotificationChannel) {
	return func(c *models.NotificationChannel) { c.Enabled = enabled }
}

// WithChannelOwner sets created_by.
func WithChannelOwner(userID int64) func(*models.NotificationChannel) {
	return func(c *models.NotificationChannel) { c.CreatedBy = userID }
}
