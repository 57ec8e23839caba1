package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
)

// timeLayout formats the ${time} variable.
const timeLayout = "2006-01-02 15:04:05"

const (
	unknownValue    = "unknown"
	noneValue       = "none"
	statusOnline    = "online"
	statusOffline   = "offline"
	statusNormal    = "normal"
	decorationOK    = " 🟢"
	decorationAlarm = " 🔴"
)

// MonitorTransition is what a monitor tick knows about one state change.
type MonitorTransition struct {
	Monitor        models.Monitor
	Status         string
	PreviousStatus string
	ResponseTime   int64 // ms
	StatusCode     int
	Error          string
	At             time.Time
}

// MonitorVariables builds the template variables for a monitor transition.
func MonitorVariables(t MonitorTransition, loc *time.Location) map[string]string {
	prev := t.PreviousStatus
	if prev == "" {
		prev = unknownValue
	}
	code := noneValue
	if t.StatusCode != 0 {
		code = strconv.Itoa(t.StatusCode)
	}
	rawErr := t.Error
	if rawErr == "" {
		rawErr = noneValue
	}

	errMsg := rawErr
	switch t.Status {
	case models.MonitorStatusUp:
		errMsg = "service recovered" + decorationOK
	case models.MonitorStatusDown:
		reason := t.Error
		if reason == "" {
			reason = "service unreachable"
		}
		errMsg = reason + decorationAlarm
	}

	rt := fmt.Sprintf("%dms", t.ResponseTime)
	return map[string]string{
		"name":            t.Monitor.Name,
		"status":          t.Status,
		"previous_status": prev,
		"time":            formatTime(t.At, loc),
		"url":             t.Monitor.URL,
		"response_time":   rt,
		"status_code":     code,
		"expected_status": strconv.Itoa(t.Monitor.ExpectedStatus),
		"error":           errMsg,
		"details": "URL: " + t.Monitor.URL +
			"\nResponse time: " + rt +
			"\nStatus code: " + code +
			"\nError: " + rawErr,
	}
}

// AgentStatusVariables builds the variables for an agent going offline
// (online=false) or coming back (online=true).
func AgentStatusVariables(a models.Agent, online bool, at time.Time, loc *time.Location) map[string]string {
	vars := agentHostVariables(a)
	vars["name"] = a.Name
	vars["time"] = formatTime(at, loc)

	details := "Hostname: " + vars["hostname"] +
		"\nIP addresses: " + vars["ip_addresses"] +
		"\nOS: " + vars["os"]
	if online {
		vars["status"] = statusOnline
		vars["previous_status"] = statusOffline
		vars["error"] = "connection restored" + decorationOK
		vars["details"] = details + "\nRecovered at: " + formatTime(at, loc)
	} else {
		vars["status"] = statusOffline
		vars["previous_status"] = statusOnline
		vars["error"] = "agent connection timed out" + decorationAlarm
		vars["details"] = details + "\nLast seen: " + formatTime(a.UpdatedAt, loc)
	}
	return vars
}

// AgentThresholdVariables builds the variables for a resource alert.
// metricName is the display name ("CPU", "Memory", "Disk").
func AgentThresholdVariables(a models.Agent, metricName string, value, threshold float64, at time.Time, loc *time.Location) map[string]string {
	vars := agentHostVariables(a)
	v := strconv.FormatFloat(value, 'f', 2, 64)
	th := strconv.FormatFloat(threshold, 'f', -1, 64)

	vars["name"] = a.Name
	vars["status"] = metricName + " alert"
	vars["previous_status"] = statusNormal
	vars["time"] = formatTime(at, loc)
	vars["error"] = fmt.Sprintf("%s(%s%%) exceeded threshold(%s%%)", metricName, v, th)
	vars["details"] = metricName + ": " + v + "%" +
		"\nThreshold: " + th + "%" +
		"\nHostname: " + vars["hostname"] +
		"\nIP addresses: " + vars["ip_addresses"] +
		"\nOS: " + vars["os"]
	return vars
}

func agentHostVariables(a models.Agent) map[string]string {
	hostname := a.Hostname
	if hostname == "" {
		hostname = unknownValue
	}
	osName := a.OS
	if osName == "" {
		osName = unknownValue
	}
	return map[string]string{
		"hostname":     hostname,
		"ip_addresses": FormatIPAddresses(a.IPAddresses),
		"os":           osName,
	}
}

// FormatIPAddresses renders a JSON array of addresses as a comma separated
// list. Anything that is not a non-empty JSON array is returned as-is, or
// "unknown" when blank.
func FormatIPAddresses(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownValue
	}
	var ips []string
	if err := json.Unmarshal([]byte(raw), &ips); err != nil {
		return raw
	}
	if len(ips) == 0 {
		return unknownValue
	}
	return strings.Join(ips, ", ")
}

func formatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(timeLayout)
}
