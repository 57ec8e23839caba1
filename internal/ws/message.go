package ws

import (
	"time"
)

// Message is the envelope for every frame sent to event-stream clients.
// Type is the bus topic the event was published on.
type Message struct {
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	UserID    int64     `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Owned is implemented by event payloads that belong to a single user.
// Payloads without an owner go to every client.
type Owned interface {
	OwnerID() int64
}

// relayedPrefixes lists the topic families forwarded to clients.
var relayedPrefixes = []string{"uptime.", "agent.", "notify."}
