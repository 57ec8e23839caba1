package models

import "time"

// Settings target types.
const (
	TargetMonitor       = "monitor"
	TargetAgent         = "agent"
	TargetGlobalMonitor = "global-monitor"
	TargetGlobalAgent   = "global-agent"
)

// Template and history types.
const (
	NotificationTypeMonitor = "monitor"
	NotificationTypeAgent   = "agent"
	NotificationTypeSystem  = "system"
)

// History statuses.
const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// NotificationSettings is one rule set, scoped to a single target or to a
// whole target family (global-monitor, global-agent).
type NotificationSettings struct {
	ID                int64   `json:"id"`
	UserID            int64   `json:"user_id"`
	TargetType        string  `json:"target_type"`
	TargetID          int64   `json:"target_id"` // 0 for global rows
	Enabled           bool    `json:"enabled"`
	OnDown            bool    `json:"on_down"`
	OnRecovery        bool    `json:"on_recovery"`
	OnOffline         bool    `json:"on_offline"`
	OnCPUThreshold    bool    `json:"on_cpu_threshold"`
	OnMemoryThreshold bool    `json:"on_memory_threshold"`
	OnDiskThreshold   bool    `json:"on_disk_threshold"`
	CPUThreshold      float64 `json:"cpu_threshold"`
	MemoryThreshold   float64 `json:"memory_threshold"`
	DiskThreshold     float64 `json:"disk_threshold"`
	Channels          string  `json:"channels"` // JSON array of channel ids
}

// NotificationChannel is a configured delivery integration.
type NotificationChannel struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`   // adapter key
	Config    string    `json:"config"` // JSON object, adapter specific
	Enabled   bool      `json:"enabled"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationTemplate is a subject/body pair with ${var} placeholders.
type NotificationTemplate struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	IsDefault bool      `json:"is_default"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationHistory is the append-only record of one delivery attempt.
type NotificationHistory struct {
	ID         int64     `json:"id"`
	DispatchID string    `json:"dispatch_id"`
	UserID     int64     `json:"user_id"`
	Type       string    `json:"type"`
	TargetID   int64     `json:"target_id"`
	ChannelID  int64     `json:"channel_id"`
	TemplateID int64     `json:"template_id"`
	Status     string    `json:"status"`
	Content    string    `json:"content"` // JSON {subject, content, variables}
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
