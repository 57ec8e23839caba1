package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
)

func TestMonitorVariables(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	mon := models.Monitor{Name: "api", URL: "https://example.com", ExpectedStatus: 200}

	tests := []struct {
		name      string
		tr        MonitorTransition
		wantError string
		wantPrev  string
		wantCode  string
	}{
		{
			name:      "down with error",
			tr:        MonitorTransition{Monitor: mon, Status: "down", PreviousStatus: "up", StatusCode: 503, Error: "unexpected status code: 503, expected: 200", At: at},
			wantError: "unexpected status code: 503, expected: 200 🔴",
			wantPrev:  "up",
			wantCode:  "503",
		},
		{
			name:      "down without error",
			tr:        MonitorTransition{Monitor: mon, Status: "down", At: at},
			wantError: "service unreachable 🔴",
			wantPrev:  "unknown",
			wantCode:  "none",
		},
		{
			name:      "recovered",
			tr:        MonitorTransition{Monitor: mon, Status: "up", PreviousStatus: "down", StatusCode: 200, At: at},
			wantError: "service recovered 🟢",
			wantPrev:  "down",
			wantCode:  "200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := MonitorVariables(tt.tr, time.UTC)
			if vars["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", vars["error"], tt.wantError)
			}
			if vars["previous_status"] != tt.wantPrev {
				t.Errorf("previous_status = %q, want %q", vars["previous_status"], tt.wantPrev)
			}
			if vars["status_code"] != tt.wantCode {
				t.Errorf("status_code = %q, want %q", vars["status_code"], tt.wantCode)
			}
			if vars["time"] != "2026-03-01 12:30:00" {
				t.Errorf("time = %q", vars["time"])
			}
			if vars["expected_status"] != "200" {
				t.Errorf("expected_status = %q, want 200", vars["expected_status"])
			}
		})
	}
}

func TestMonitorVariables_ResponseTimeAndDetails(t *testing.T) {
	vars := MonitorVariables(MonitorTransition{
		Monitor:      models.Monitor{Name: "api", URL: "https://example.com"},
		Status:       "down",
		ResponseTime: 1234,
		Error:        "connection refused",
	}, nil)
	if vars["response_time"] != "1234ms" {
		t.Errorf("response_time = %q, want 1234ms", vars["response_time"])
	}
	if !strings.Contains(vars["details"], "Error: connection refused") {
		t.Errorf("details = %q, want raw error", vars["details"])
	}
}

func TestAgentStatusVariables(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	agent := models.Agent{Name: "web-1", IPAddresses: `["10.0.0.1","10.0.0.2"]`, UpdatedAt: at.Add(-10 * time.Minute)}

	offline := AgentStatusVariables(agent, false, at, time.UTC)
	if offline["status"] != "offline" || offline["previous_status"] != "online" {
		t.Errorf("offline transition = %q <- %q", offline["status"], offline["previous_status"])
	}
	if offline["error"] != "agent connection timed out 🔴" {
		t.Errorf("offline error = %q", offline["error"])
	}
	if offline["hostname"] != "unknown" || offline["os"] != "unknown" {
		t.Errorf("missing host fields = %q / %q, want unknown", offline["hostname"], offline["os"])
	}
	if offline["ip_addresses"] != "10.0.0.1, 10.0.0.2" {
		t.Errorf("ip_addresses = %q", offline["ip_addresses"])
	}
	if !strings.Contains(offline["details"], "Last seen: 2026-03-01 07:50:00") {
		t.Errorf("details = %q", offline["details"])
	}

	online := AgentStatusVariables(agent, true, at, time.UTC)
	if online["status"] != "online" || online["previous_status"] != "offline" {
		t.Errorf("online transition = %q <- %q", online["status"], online["previous_status"])
	}
	if online["error"] != "connection restored 🟢" {
		t.Errorf("online error = %q", online["error"])
	}
}

func TestAgentThresholdVariables(t *testing.T) {
	agent := models.Agent{Name: "db-1", Hostname: "db-1.local", OS: "linux"}
	vars := AgentThresholdVariables(agent, "CPU", 91.256, 80, time.Now(), time.UTC)

	if vars["status"] != "CPU alert" {
		t.Errorf("status = %q", vars["status"])
	}
	if vars["previous_status"] != "normal" {
		t.Errorf("previous_status = %q", vars["previous_status"])
	}
	if vars["error"] != "CPU(91.26%) exceeded threshold(80%)" {
		t.Errorf("error = %q", vars["error"])
	}
	if !strings.HasPrefix(vars["details"], "CPU: 91.26%\nThreshold: 80%") {
		t.Errorf("details = %q", vars["details"])
	}
}

func TestFormatIPAddresses(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "unknown"},
		{"[]", "unknown"},
		{`["192.168.1.1"]`, "192.168.1.1"},
		{`["a","b"]`, "a, b"},
		{"10.0.0.9", "10.0.0.9"},
	}
	for _, tt := range tests {
		if got := FormatIPAddresses(tt.raw); got != tt.want {
			t.Errorf("FormatIPAddresses(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
