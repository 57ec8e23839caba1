package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/beacon/internal/notify"
	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
)

// ErrAgentNotFound is returned by Ingest for unknown agents.
var ErrAgentNotFound = errors.New("agent not found")

// Report is one heartbeat from an agent. Metric fields are optional; an
// absent metric is neither stored nor checked.
type Report struct {
	Hostname    string   `json:"hostname,omitempty"`
	IPAddresses []string `json:"ip_addresses,omitempty"`
	OS          string   `json:"os,omitempty"`
	CPUUsage    *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage *float64 `json:"memory_usage,omitempty"`
	DiskUsage   *float64 `json:"disk_usage,omitempty"`
}

func (r Report) hasMetrics() bool {
	return r.CPUUsage != nil || r.MemoryUsage != nil || r.DiskUsage != nil
}

// ReportResult describes what ingesting a report did.
type ReportResult struct {
	AgentID   int64    `json:"agent_id"`
	Status    string   `json:"status"`
	Recovered bool     `json:"recovered"`
	Breached  []string `json:"breached"`
	Notified  int      `json:"notified"`
}

// Ingest records a heartbeat for agentID. An agent stored as inactive comes
// back online and the recovery is evaluated for notification; when reports
// race, only the one that flips the stored status notifies. Reported
// metrics are stored and each is checked against its threshold.
func (m *Module) Ingest(ctx context.Context, agentID int64, r Report) (*ReportResult, error) {
	if m.store == nil {
		return nil, errors.New("agent store not available")
	}
	m.inflight.Add(1)
	defer m.inflight.Done()

	a, err := m.store.GetAgent(ctx, agentID)
	if err != nil {
		reportsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if a == nil {
		reportsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrAgentNotFound
	}

	at := m.clock()
	var ips string
	if len(r.IPAddresses) > 0 {
		b, err := json.Marshal(r.IPAddresses)
		if err != nil {
			return nil, fmt.Errorf("encode ip addresses: %w", err)
		}
		ips = string(b)
	}
	recovered := false
	if a.Status == models.AgentStatusInactive {
		recovered, err = m.store.MarkActive(ctx, a.ID)
		if err != nil {
			reportsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}
	if err := m.store.Heartbeat(ctx, a.ID, at, r.Hostname, ips, r.OS); err != nil {
		reportsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	reportsTotal.WithLabelValues("ok").Inc()

	if r.Hostname != "" {
		a.Hostname = r.Hostname
	}
	if ips != "" {
		a.IPAddresses = ips
	}
	if r.OS != "" {
		a.OS = r.OS
	}

	res := &ReportResult{AgentID: a.ID, Status: notify.StatusOnline, Breached: []string{}}
	if recovered {
		res.Recovered = true
		if m.handleStatusChange(ctx, a, true, at) {
			res.Notified++
		}
	}
	a.Status = models.AgentStatusActive
	a.UpdatedAt = at

	if !r.hasMetrics() {
		return res, nil
	}
	sample := &models.AgentMetric{AgentID: a.ID, Timestamp: at}
	if r.CPUUsage != nil {
		sample.CPUUsage = *r.CPUUsage
	}
	if r.MemoryUsage != nil {
		sample.MemoryUsage = *r.MemoryUsage
	}
	if r.DiskUsage != nil {
		sample.DiskUsage = *r.DiskUsage
	}
	if err := m.store.InsertMetric(context.WithoutCancel(ctx), sample); err != nil {
		m.logger.Warn("failed to record agent metrics", zap.Int64("agent_id", a.ID), zap.Error(err))
	}

	checks := []struct {
		metric string
		value  *float64
	}{
		{notify.MetricCPU, r.CPUUsage},
		{notify.MetricMemory, r.MemoryUsage},
		{notify.MetricDisk, r.DiskUsage},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		breached, notified := m.checkThreshold(ctx, a, c.metric, *c.value, at)
		if breached {
			res.Breached = append(res.Breached, c.metric)
		}
		if notified {
			res.Notified++
		}
	}
	return res, nil
}

// checkThreshold evaluates one reported metric. Alerts are level-triggered:
// every sample at or above the threshold notifies again.
func (m *Module) checkThreshold(ctx context.Context, a *models.Agent, metric string, value float64, at time.Time) (breached, notified bool) {
	n := m.notifier()
	if n == nil {
		return false, false
	}
	decision, err := n.CheckThreshold(ctx, a.CreatedBy, a.ID, metric, value)
	if err != nil {
		m.logger.Warn("threshold policy failed",
			zap.Int64("agent_id", a.ID),
			zap.String("metric", metric),
			zap.Error(err),
		)
		return false, false
	}
	if !decision.Send {
		return false, false
	}

	thresholdBreaches.WithLabelValues(metric).Inc()
	m.logger.Info("agent metric over threshold",
		zap.Int64("agent_id", a.ID),
		zap.String("metric", metric),
		zap.Float64("value", value),
		zap.Float64("threshold", decision.Threshold),
	)
	m.publish(ctx, TopicThresholdBreached, ThresholdBreachedEvent{
		UserID:    a.CreatedBy,
		AgentID:   a.ID,
		Name:      a.Name,
		Metric:    metric,
		Value:     value,
		Threshold: decision.Threshold,
		At:        at,
	})

	res := n.Send(ctx, notify.SendRequest{
		Type:       models.NotificationTypeAgent,
		TargetID:   a.ID,
		Variables:  notify.AgentThresholdVariables(*a, decision.MetricName, value, decision.Threshold, at, n.Location()),
		ChannelIDs: decision.Channels,
		UserID:     a.CreatedBy,
	})
	return true, res.Success
}
