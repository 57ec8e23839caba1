package uptime

import "time"

// Event topics published by the uptime module.
const (
	TopicStatusChanged   = "uptime.monitor.status_changed"
	TopicTickCompleted   = "uptime.tick.completed"
	TopicRollupCompleted = "uptime.rollup.completed"
)

// StatusChangedEvent is published when a probe moves a monitor to a new
// status.
type StatusChangedEvent struct {
	UserID         int64     `json:"user_id"`
	MonitorID      int64     `json:"monitor_id"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	StatusCode     int       `json:"status_code"`
	ResponseTime   int64     `json:"response_time"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// OwnerID scopes the event to the monitor's owner on the live event stream.
func (e StatusChangedEvent) OwnerID() int64 { return e.UserID }
