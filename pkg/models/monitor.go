package models

import "time"

// Monitor statuses. An empty status means the monitor was never probed.
const (
	MonitorStatusUp      = "up"
	MonitorStatusDown    = "down"
	MonitorStatusUnknown = ""
)

// Monitor defaults applied when a field is zero.
const (
	DefaultMonitorInterval       = 60  // seconds
	DefaultMonitorTimeout        = 30  // seconds
	DefaultMonitorExpectedStatus = 200 // exact code, or 1-5 for a status class
)

// Monitor is an HTTP endpoint probed on an interval.
type Monitor struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	Method         string     `json:"method"`
	Headers        string     `json:"headers,omitempty"` // JSON object
	Body           string     `json:"body,omitempty"`
	Interval       int        `json:"interval"`        // seconds
	Timeout        int        `json:"timeout"`         // seconds
	ExpectedStatus int        `json:"expected_status"` // exact code or class digit
	Active         bool       `json:"active"`
	Status         string     `json:"status"`
	ResponseTime   int64      `json:"response_time"` // milliseconds
	LastChecked    *time.Time `json:"last_checked,omitempty"`
	CreatedBy      int64      `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MonitorCheck is one row of the short-retention status history.
type MonitorCheck struct {
	ID           int64     `json:"id"`
	MonitorID    int64     `json:"monitor_id"`
	Status       string    `json:"status"`
	ResponseTime int64     `json:"response_time"`
	StatusCode   int       `json:"status_code"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// MonitorDailyStats is the per-day rollup of a monitor's history.
type MonitorDailyStats struct {
	ID              int64   `json:"id"`
	MonitorID       int64   `json:"monitor_id"`
	Date            string  `json:"date"` // YYYY-MM-DD, UTC
	TotalChecks     int     `json:"total_checks"`
	UpChecks        int     `json:"up_checks"`
	DownChecks      int     `json:"down_checks"`
	AvgResponseTime float64 `json:"avg_response_time"`
	MinResponseTime int64   `json:"min_response_time"`
	MaxResponseTime int64   `json:"max_response_time"`
	Availability    float64 `json:"availability"` // percent, 2 decimals
}
