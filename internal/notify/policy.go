package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
)

// Transition statuses understood by ShouldNotify. Agents are evaluated in
// online/offline terms, not their stored active/inactive values.
const (
	StatusUp      = models.MonitorStatusUp
	StatusDown    = models.MonitorStatusDown
	StatusOnline  = statusOnline
	StatusOffline = statusOffline
)

// Metric keys accepted by CheckThreshold.
const (
	MetricCPU    = "cpu"
	MetricMemory = "memory"
	MetricDisk   = "disk"
)

// Decision is the outcome of a transition policy evaluation.
type Decision struct {
	Send     bool    `json:"send"`
	Channels []int64 `json:"channels"`
}

// ThresholdDecision is the outcome of a threshold policy evaluation.
type ThresholdDecision struct {
	Send       bool    `json:"send"`
	Channels   []int64 `json:"channels"`
	Threshold  float64 `json:"threshold"`
	MetricName string  `json:"metric_name"` // display name, e.g. "CPU"
}

// Policy decides whether a state change or metric sample should notify,
// using a target's own settings and falling back to its family's global row.
type Policy struct {
	store  *NotifyStore
	logger *zap.Logger
}

func NewPolicy(store *NotifyStore, logger *zap.Logger) *Policy {
	return &Policy{store: store, logger: logger}
}

// effectiveSettings returns the enabled specific rows for a target, or the
// enabled global row of its family when there are none.
func (p *Policy) effectiveSettings(ctx context.Context, userID int64, targetType string, targetID int64) ([]models.NotificationSettings, error) {
	rows, err := p.store.ListSettings(ctx, userID, targetType, targetID)
	if err != nil {
		return nil, err
	}
	var enabled []models.NotificationSettings
	for i := range rows {
		if rows[i].Enabled {
			enabled = append(enabled, rows[i])
		}
	}
	if len(enabled) > 0 {
		return enabled, nil
	}

	global, err := p.store.GetGlobalSettings(ctx, userID, "global-"+targetType)
	if err != nil {
		return nil, err
	}
	if global == nil || !global.Enabled {
		return nil, nil
	}
	return []models.NotificationSettings{*global}, nil
}

// ShouldNotify evaluates a status transition for a monitor or agent. An
// error means the settings could not be read; callers must not send.
func (p *Policy) ShouldNotify(ctx context.Context, userID int64, targetType string, targetID int64, prev, cur string) (Decision, error) {
	if targetID <= 0 {
		return Decision{}, nil
	}
	rows, err := p.effectiveSettings(ctx, userID, targetType, targetID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve %s settings: %w", targetType, err)
	}
	if len(rows) == 0 {
		p.logger.Debug("no enabled notification settings",
			zap.String("target_type", targetType),
			zap.Int64("target_id", targetID),
		)
		return Decision{}, nil
	}

	var channels []int64
	seen := make(map[int64]struct{})
	for i := range rows {
		ids, err := parseChannelIDs(rows[i].Channels)
		if err != nil {
			p.logger.Warn("unreadable settings channel list",
				zap.Int64("settings_id", rows[i].ID),
				zap.Error(err),
			)
			continue
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			channels = append(channels, id)
		}
	}
	if len(channels) == 0 {
		return Decision{}, nil
	}

	for i := range rows {
		if transitionAllowed(&rows[i], targetType, prev, cur) {
			return Decision{Send: true, Channels: channels}, nil
		}
	}
	return Decision{}, nil
}

func transitionAllowed(s *models.NotificationSettings, targetType, prev, cur string) bool {
	switch targetType {
	case models.TargetMonitor:
		if prev != StatusDown && cur == StatusDown {
			return s.OnDown
		}
		if prev == StatusDown && cur == StatusUp {
			return s.OnRecovery
		}
	case models.TargetAgent:
		if prev != StatusOffline && cur == StatusOffline {
			return s.OnOffline
		}
		if prev == StatusOffline && cur == StatusOnline {
			return s.OnRecovery
		}
	}
	return false
}

// CheckThreshold evaluates one agent metric sample. It is level-triggered:
// every sample at or above the threshold sends.
func (p *Policy) CheckThreshold(ctx context.Context, userID, agentID int64, metric string, value float64) (ThresholdDecision, error) {
	if agentID <= 0 {
		return ThresholdDecision{}, nil
	}
	rows, err := p.effectiveSettings(ctx, userID, models.TargetAgent, agentID)
	if err != nil {
		return ThresholdDecision{}, fmt.Errorf("resolve agent settings: %w", err)
	}
	if len(rows) == 0 {
		return ThresholdDecision{}, nil
	}
	s := rows[0]

	var on bool
	d := ThresholdDecision{}
	switch metric {
	case MetricCPU:
		on, d.Threshold, d.MetricName = s.OnCPUThreshold, s.CPUThreshold, "CPU"
	case MetricMemory:
		on, d.Threshold, d.MetricName = s.OnMemoryThreshold, s.MemoryThreshold, "Memory"
	case MetricDisk:
		on, d.Threshold, d.MetricName = s.OnDiskThreshold, s.DiskThreshold, "Disk"
	default:
		return ThresholdDecision{}, fmt.Errorf("unknown metric %q", metric)
	}
	if !on || value < d.Threshold {
		return d, nil
	}

	ids, err := parseChannelIDs(s.Channels)
	if err != nil {
		p.logger.Warn("unreadable settings channel list",
			zap.Int64("settings_id", s.ID),
			zap.Error(err),
		)
		return d, nil
	}
	if len(ids) == 0 {
		return d, nil
	}
	d.Send = true
	d.Channels = ids
	return d, nil
}

// parseChannelIDs reads a JSON array of channel ids. Ids may be numbers or
// numeric strings.
func parseChannelIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse channel ids: %w", err)
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		var n int64
		if err := json.Unmarshal(item, &n); err == nil {
			ids = append(ids, n)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("parse channel id %s: %w", item, err)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse channel id %q: %w", s, err)
		}
		ids = append(ids, n)
	}
	return ids, nil
}
