package uptime

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
)

// ProbeResult is the outcome of one HTTP probe.
type ProbeResult struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time"` // ms
	StatusCode   int    `json:"status_code"`
	Error        string `json:"error,omitempty"`
	// Aborted is set when the caller's context ended before the request
	// finished. Status is not meaningful then.
	Aborted bool `json:"-"`
}

// Prober issues a monitor's configured HTTP request and classifies the
// response against the expected status.
type Prober struct {
	client         *http.Client
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// NewProber creates a Prober. Certificate verification is skipped only
// when insecure is set.
func NewProber(defaultTimeout time.Duration, insecure bool, logger *zap.Logger) *Prober {
	if defaultTimeout <= 0 {
		defaultTimeout = models.DefaultMonitorTimeout * time.Second
	}
	return &Prober{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure}, //nolint:gosec // G402: opt-in for self-signed endpoints
				DisableKeepAlives: true,
			},
		},
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Probe runs one request for m. It never returns an error: every failure
// yields a down result with the reason in Error. The monitor timeout is the
// only deadline that classifies a monitor as down; if ctx ends first the
// result is marked Aborted.
func (p *Prober) Probe(ctx context.Context, m *models.Monitor) ProbeResult {
	timeout := p.defaultTimeout
	if m.Timeout > 0 {
		timeout = time.Duration(m.Timeout) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	method := strings.ToUpper(strings.TrimSpace(m.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader = http.NoBody
	if method != http.MethodGet && method != http.MethodHead && m.Body != "" {
		body = strings.NewReader(m.Body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, method, m.URL, body)
	if err != nil {
		return ProbeResult{Status: models.MonitorStatusDown, Error: fmt.Sprintf("invalid request: %v", err)}
	}
	for k, v := range p.parseHeaders(m) {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return ProbeResult{ResponseTime: elapsed, Error: ctx.Err().Error(), Aborted: true}
		}
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("request timed out after %s", timeout)
		}
		return ProbeResult{Status: models.MonitorStatusDown, ResponseTime: elapsed, Error: msg}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	res := ProbeResult{ResponseTime: elapsed, StatusCode: resp.StatusCode}
	if statusMatches(resp.StatusCode, m.ExpectedStatus) {
		res.Status = models.MonitorStatusUp
		return res
	}
	res.Status = models.MonitorStatusDown
	res.Error = fmt.Sprintf("unexpected status code: %d, expected: %s", resp.StatusCode, expectedDisplay(m.ExpectedStatus))
	return res
}

// parseHeaders reads the monitor's JSON header object. Unreadable headers
// are ignored; non-string values are stringified.
func (p *Prober) parseHeaders(m *models.Monitor) map[string]string {
	raw := strings.TrimSpace(m.Headers)
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		p.logger.Debug("ignoring unreadable monitor headers",
			zap.Int64("monitor_id", m.ID),
			zap.Error(err),
		)
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

// statusMatches treats an expected value of 1-5 as a status class.
func statusMatches(got, expected int) bool {
	if expected == 0 {
		expected = models.DefaultMonitorExpectedStatus
	}
	if expected >= 1 && expected <= 5 {
		return got/100 == expected
	}
	return got == expected
}

func expectedDisplay(expected int) string {
	if expected == 0 {
		expected = models.DefaultMonitorExpectedStatus
	}
	if expected >= 1 && expected <= 5 {
		return fmt.Sprintf("%dxx", expected)
	}
	return fmt.Sprintf("%d", expected)
}
