package models

import "time"

// Agent statuses as stored. Notifications speak of online/offline.
const (
	AgentStatusActive   = "active"
	AgentStatusInactive = "inactive"
)

// DefaultAgentKeepalive is the heartbeat interval assumed when unset.
const DefaultAgentKeepalive = 60 // seconds

// Agent is a remote host that reports heartbeats and metrics.
type Agent struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Keepalive   int       `json:"keepalive"` // seconds
	UpdatedAt   time.Time `json:"updated_at"`
	Status      string    `json:"status"`
	Hostname    string    `json:"hostname,omitempty"`
	IPAddresses string    `json:"ip_addresses,omitempty"` // JSON array
	OS          string    `json:"os,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// AgentMetric is one short-retention resource sample.
type AgentMetric struct {
	ID          int64     `json:"id"`
	AgentID     int64     `json:"agent_id"`
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
}
