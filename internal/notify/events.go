package notify

// Event topics published by the notify module.
const (
	TopicDispatched = "notify.dispatched"
)

// DispatchedEvent summarizes one completed Send.
type DispatchedEvent struct {
	UserID     int64  `json:"user_id"`
	DispatchID string `json:"dispatch_id"`
	Type       string `json:"type"`
	TargetID   int64  `json:"target_id"`
	Success    bool   `json:"success"`
	Attempts   int    `json:"attempts"`
	Failed     int    `json:"failed"`
}

// OwnerID scopes the event to its user on the live event stream.
func (e DispatchedEvent) OwnerID() int64 { return e.UserID }
