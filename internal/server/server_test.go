package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HerbHall/beacon/pkg/plugin"
	"go.uber.org/zap"
)

type mockPluginSource struct {
	plugins []plugin.Plugin
	routes  map[string][]plugin.Route
}

func (m *mockPluginSource) AllRoutes() map[string][]plugin.Route {
	if m.routes != nil {
		return m.routes
	}
	return map[string][]plugin.Route{}
}

func (m *mockPluginSource) All() []plugin.Plugin { return m.plugins }

type stubPlugin struct {
	info   plugin.PluginInfo
	health *plugin.HealthStatus
}

func (s *stubPlugin) Info() plugin.PluginInfo                             { return s.info }
func (s *stubPlugin) Init(_ context.Context, _ plugin.Dependencies) error { return nil }
func (s *stubPlugin) Start(_ context.Context) error                       { return nil }
func (s *stubPlugin) Stop(_ context.Context) error                        { return nil }

type healthyPlugin struct{ stubPlugin }

func (h *healthyPlugin) Health(_ context.Context) plugin.HealthStatus { return *h.health }

func newTestServer(ready ReadinessChecker, plugins ...plugin.Plugin) *Server {
	src := &mockPluginSource{
		plugins: plugins,
		routes: map[string][]plugin.Route{
			"uptime": {{
				Method: http.MethodPost,
				Path:   "/monitors/{id}/check",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(r.PathValue("id")))
				},
			}},
		},
	}
	return New(Config{Host: "127.0.0.1", Port: 0}, src, zap.NewNop(), ready)
}

func TestHandleHealthz(t *testing.T) {
	srv := newTestServer(nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("status = %q, want alive", body["status"])
	}
}

func TestHandleReadyz(t *testing.T) {
	tests := []struct {
		name  string
		ready ReadinessChecker
		want  int
	}{
		{name: "no checker", want: http.StatusOK},
		{name: "ready", ready: func(context.Context) error { return nil }, want: http.StatusOK},
		{name: "database down", ready: func(context.Context) error { return errors.New("db closed") }, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.ready)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleHealth_AggregatesPluginHealth(t *testing.T) {
	degraded := &healthyPlugin{stubPlugin{
		info:   plugin.PluginInfo{Name: "notify", Version: "0.1.0"},
		health: &plugin.HealthStatus{Status: "degraded", Message: "no adapters"},
	}}
	srv := newTestServer(nil, degraded, &stubPlugin{info: plugin.PluginInfo{Name: "agent", Version: "0.1.0"}})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Service != "beacon" {
		t.Errorf("Service = %q, want beacon", resp.Service)
	}
	if got := resp.Plugins["notify"].Status; got != "degraded" {
		t.Errorf("notify health = %q, want degraded", got)
	}
	if _, ok := resp.Plugins["agent"]; ok {
		t.Error("plugin without HealthChecker should not report health")
	}
}

func TestHandlePlugins(t *testing.T) {
	srv := newTestServer(nil, &stubPlugin{info: plugin.PluginInfo{
		Name: "uptime", Version: "0.1.0", Description: "HTTP monitors", Dependencies: []string{"notify"},
	}})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plugins", http.NoBody))

	var resp []PluginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].Name != "uptime" || len(resp[0].Dependencies) != 1 {
		t.Errorf("plugins = %+v", resp)
	}
}

func TestPluginRoutesMounted(t *testing.T) {
	srv := newTestServer(nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/uptime/monitors/42/check", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "42" {
		t.Errorf("body = %q, want 42", w.Body.String())
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uptime/monitors/42/check", http.NoBody))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}
}
