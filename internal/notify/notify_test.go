package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/HerbHall/beacon/internal/config"
	"github.com/HerbHall/beacon/internal/store"
	"github.com/HerbHall/beacon/pkg/models"
	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/HerbHall/beacon/pkg/plugin/plugintest"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestPluginContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func initModule(t *testing.T, v *viper.Viper) *Module {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := New()
	deps := plugin.Dependencies{Logger: zap.NewNop(), Store: db}
	if v != nil {
		deps.Config = config.New(v)
	}
	if err := m.Init(context.Background(), deps); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return m
}

func TestInit_WithConfig(t *testing.T) {
	v := viper.New()
	v.Set("delivery_timeout", "3s")
	v.Set("max_concurrency", 2)
	v.Set("timezone", "Asia/Shanghai")

	m := initModule(t, v)
	if m.cfg.DeliveryTimeout != 3*time.Second {
		t.Errorf("DeliveryTimeout = %v, want 3s", m.cfg.DeliveryTimeout)
	}
	if m.cfg.MaxConcurrency != 2 {
		t.Errorf("MaxConcurrency = %d, want 2", m.cfg.MaxConcurrency)
	}
	if m.Location().String() != "Asia/Shanghai" {
		t.Errorf("Location() = %v, want Asia/Shanghai", m.Location())
	}
	if err := m.ValidateConfig(); err != nil {
		t.Errorf("ValidateConfig() = %v", err)
	}
	if h := m.Health(context.Background()); h.Status != "healthy" {
		t.Errorf("Health() = %+v", h)
	}
}

func TestInit_BadTimezoneFallsBackToUTC(t *testing.T) {
	v := viper.New()
	v.Set("timezone", "Mars/Olympus_Mons")
	m := initModule(t, v)
	if m.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", m.Location())
	}
}

func TestValidateConfig(t *testing.T) {
	m := New()
	m.cfg = DefaultConfig()
	m.cfg.MaxConcurrency = 0
	if err := m.ValidateConfig(); err == nil {
		t.Error("ValidateConfig() accepted max_concurrency 0")
	}
}

func TestModule_NoStore(t *testing.T) {
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	d, err := m.ShouldNotify(context.Background(), 1, "monitor", 1, "up", "down")
	if err != nil || d.Send {
		t.Errorf("ShouldNotify() = %+v, %v", d, err)
	}
	if res := m.Send(context.Background(), SendRequest{ChannelIDs: []int64{1}}); res.Success {
		t.Error("Send() succeeded without a store")
	}
	if h := m.Health(context.Background()); h.Status != "degraded" {
		t.Errorf("Health() = %q, want degraded", h.Status)
	}
}

func TestSeedDefaults_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	res, err := SeedDefaults(ctx, s, 42)
	if err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if res.TemplatesCreated != 2 || res.SettingsCreated != 2 {
		t.Errorf("first seed = %+v, want 2/2", res)
	}
	res, err = SeedDefaults(ctx, s, 42)
	if err != nil {
		t.Fatalf("SeedDefaults again: %v", err)
	}
	if res.TemplatesCreated != 0 || res.SettingsCreated != 0 {
		t.Errorf("second seed = %+v, want 0/0", res)
	}

	global, err := s.GetGlobalSettings(ctx, 42, models.TargetGlobalAgent)
	if err != nil || global == nil {
		t.Fatalf("GetGlobalSettings = %v, %v", global, err)
	}
	if global.Enabled {
		t.Error("seeded global settings are enabled")
	}
	if global.CPUThreshold != 80 || global.DiskThreshold != 90 || !global.OnCPUThreshold {
		t.Errorf("global agent row = %+v", global)
	}

	tpl, _ := s.GetDefaultTemplate(ctx, 42, models.NotificationTypeAgent)
	if tpl == nil || tpl.Subject != defaultAgentSubject {
		t.Errorf("agent template = %+v", tpl)
	}
}

func TestHandleSeedDefaults(t *testing.T) {
	m := initModule(t, nil)
	mux := http.NewServeMux()
	for _, rt := range m.Routes() {
		mux.HandleFunc(rt.Method+" "+rt.Path, rt.Handler)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/5/defaults", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res SeedResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TemplatesCreated != 2 {
		t.Errorf("TemplatesCreated = %d, want 2", res.TemplatesCreated)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/abc/defaults", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid user status = %d, want 400", rec.Code)
	}
}

func TestHandleListHistory(t *testing.T) {
	m := initModule(t, nil)
	for i := 0; i < 3; i++ {
		if err := m.store.InsertHistory(context.Background(), &models.NotificationHistory{
			DispatchID: "d", UserID: 3, Type: "monitor", TargetID: 1, ChannelID: 1,
			TemplateID: 1, Status: models.DeliveryFailed, Content: "{}", Error: "boom",
		}); err != nil {
			t.Fatalf("InsertHistory: %v", err)
		}
	}
	mux := http.NewServeMux()
	for _, rt := range m.Routes() {
		mux.HandleFunc(rt.Method+" "+rt.Path, rt.Handler)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantItems  int
		wantTotal  int
	}{
		{"missing user", "", http.StatusBadRequest, 0, 0},
		{"bad status", "?user_id=3&status=maybe", http.StatusBadRequest, 0, 0},
		{"bad target", "?user_id=3&target_id=x", http.StatusBadRequest, 0, 0},
		{"all", "?user_id=3", http.StatusOK, 3, 3},
		{"limited", "?user_id=3&limit=2", http.StatusOK, 2, 3},
		{"other user", "?user_id=4", http.StatusOK, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var page historyPage
			if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(page.Items) != tt.wantItems || page.Total != tt.wantTotal {
				t.Errorf("items = %d, total = %d; want %d, %d", len(page.Items), page.Total, tt.wantItems, tt.wantTotal)
			}
		})
	}
}
