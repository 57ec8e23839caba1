package uptime

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/beacon/internal/testutil"
	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
)

func TestStatusMatches(t *testing.T) {
	tests := []struct {
		got, expected int
		want          bool
	}{
		{200, 200, true},
		{204, 200, false},
		{204, 2, true},
		{301, 3, true},
		{404, 2, false},
		{404, 404, true},
		{200, 0, true},
		{500, 5, true},
	}
	for _, tt := range tests {
		if got := statusMatches(tt.got, tt.expected); got != tt.want {
			t.Errorf("statusMatches(%d, %d) = %v, want %v", tt.got, tt.expected, got, tt.want)
		}
	}
}

func TestProbe_StatusClassAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewProber(5*time.Second, false, zap.NewNop())
	mon := testutil.NewMonitor(testutil.WithURL(srv.URL), testutil.WithExpectedStatus(2))
	res := p.Probe(context.Background(), &mon)
	if res.Status != models.MonitorStatusUp {
		t.Fatalf("Status = %q, want up (error %q)", res.Status, res.Error)
	}
	if res.StatusCode != http.StatusNoContent {
		t.Errorf("StatusCode = %d, want 204", res.StatusCode)
	}
	if res.Error != "" {
		t.Errorf("Error = %q, want empty", res.Error)
	}
}

func TestProbe_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProber(5*time.Second, false, zap.NewNop())

	mon := testutil.NewMonitor(testutil.WithURL(srv.URL))
	res := p.Probe(context.Background(), &mon)
	if res.Status != models.MonitorStatusDown {
		t.Fatalf("Status = %q, want down", res.Status)
	}
	if want := "unexpected status code: 404, expected: 200"; res.Error != want {
		t.Errorf("Error = %q, want %q", res.Error, want)
	}

	mon = testutil.NewMonitor(testutil.WithURL(srv.URL), testutil.WithExpectedStatus(2))
	res = p.Probe(context.Background(), &mon)
	if want := "unexpected status code: 404, expected: 2xx"; res.Error != want {
		t.Errorf("Error = %q, want %q", res.Error, want)
	}
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewProber(5*time.Second, false, zap.NewNop())
	mon := testutil.NewMonitor(testutil.WithURL(srv.URL))
	mon.Timeout = 1
	res := p.Probe(context.Background(), &mon)
	if res.Status != models.MonitorStatusDown {
		t.Fatalf("Status = %q, want down", res.Status)
	}
	if !strings.Contains(res.Error, "timed out after 1s") {
		t.Errorf("Error = %q, want timeout message", res.Error)
	}
}

func TestProbe_CallerDeadlineAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(5*time.Second, false, zap.NewNop())
	mon := testutil.NewMonitor(testutil.WithURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := p.Probe(ctx, &mon)
	if !res.Aborted {
		t.Fatalf("Probe() = %+v, want aborted", res)
	}
	if res.Status == models.MonitorStatusDown {
		t.Error("aborted probe classified as down")
	}
	if strings.Contains(res.Error, "timed out after") {
		t.Errorf("Error = %q, must not report a monitor timeout", res.Error)
	}
}

func TestProbe_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProber(2*time.Second, false, zap.NewNop())
	mon := testutil.NewMonitor(testutil.WithURL(url))
	res := p.Probe(context.Background(), &mon)
	if res.Status != models.MonitorStatusDown || res.Error == "" {
		t.Errorf("Probe() = %+v, want down with error", res)
	}
}

func TestProbe_HeadersAndBody(t *testing.T) {
	var gotHeader, gotRetry, gotBody, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Token")
		gotRetry = r.Header.Get("X-Retry")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	p := NewProber(5*time.Second, false, zap.NewNop())

	mon := testutil.NewMonitor(testutil.WithURL(srv.URL))
	mon.Method = "post"
	mon.Headers = `{"X-Token":"abc","X-Retry":3}`
	mon.Body = `{"ping":true}`
	if res := p.Probe(context.Background(), &mon); res.Status != models.MonitorStatusUp {
		t.Fatalf("Probe() = %+v", res)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotHeader != "abc" || gotRetry != "3" {
		t.Errorf("headers = %q, %q", gotHeader, gotRetry)
	}
	if gotBody != `{"ping":true}` {
		t.Errorf("body = %q", gotBody)
	}

	mon.Method = "GET"
	if res := p.Probe(context.Background(), &mon); res.Status != models.MonitorStatusUp {
		t.Fatalf("Probe() = %+v", res)
	}
	if gotBody != "" {
		t.Errorf("GET sent body %q", gotBody)
	}
}

func TestProbe_UnreadableHeadersIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	p := NewProber(5*time.Second, false, zap.NewNop())
	mon := testutil.NewMonitor(testutil.WithURL(srv.URL))
	mon.Headers = `{not json`
	if res := p.Probe(context.Background(), &mon); res.Status != models.MonitorStatusUp {
		t.Errorf("Probe() = %+v, want up", res)
	}
}
