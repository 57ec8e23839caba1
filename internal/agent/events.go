package agent

import "time"

// Event topics published by the agent module.
const (
	TopicStatusChanged     = "agent.status_changed"
	TopicThresholdBreached = "agent.threshold_breached"
	TopicTickCompleted     = "agent.tick.completed"
)

// StatusChangedEvent is published when an agent goes offline or comes back.
type StatusChangedEvent struct {
	UserID         int64     `json:"user_id"`
	AgentID        int64     `json:"agent_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"` // online or offline
	PreviousStatus string    `json:"previous_status"`
	LastSeen       time.Time `json:"last_seen"`
}

// OwnerID scopes the event to the agent's owner on the live event stream.
func (e StatusChangedEvent) OwnerID() int64 { return e.UserID }

// ThresholdBreachedEvent is published when a reported metric reaches the
// configured threshold.
type ThresholdBreachedEvent struct {
	UserID    int64     `json:"user_id"`
	AgentID   int64     `json:"agent_id"`
	Name      string    `json:"name"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	At        time.Time `json:"at"`
}

func (e ThresholdBreachedEvent) OwnerID() int64 { return e.UserID }
