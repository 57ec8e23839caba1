package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
)

func TestDeliver_DisabledChannel(t *testing.T) {
	called := false
	r := NewAdapterRegistry(zap.NewNop(), 0, 1, time.Second)
	r.Register("fake", AdapterFunc(func(context.Context, string, string, string) error {
		called = true
		return nil
	}))

	res := r.Deliver(context.Background(), models.NotificationChannel{ID: 1, Type: "fake", Enabled: false}, "s", "b")
	if res.Success || res.Error != "channel disabled" {
		t.Errorf("Deliver() = %+v, want channel disabled", res)
	}
	if called {
		t.Error("adapter invoked for disabled channel")
	}
}

func TestDeliver_UnsupportedType(t *testing.T) {
	r := NewAdapterRegistry(zap.NewNop(), 0, 1, time.Second)
	res := r.Deliver(context.Background(), models.NotificationChannel{ID: 1, Type: "pigeon", Enabled: true}, "s", "b")
	if res.Success || res.Error != "unsupported channel type" {
		t.Errorf("Deliver() = %+v", res)
	}
}

func TestDeliver_AdapterPanic(t *testing.T) {
	r := NewAdapterRegistry(zap.NewNop(), 0, 1, time.Second)
	r.Register("boom", AdapterFunc(func(context.Context, string, string, string) error {
		panic("kaboom")
	}))
	res := r.Deliver(context.Background(), models.NotificationChannel{ID: 7, Type: "boom", Enabled: true}, "s", "b")
	if res.Success {
		t.Fatal("Deliver() succeeded after panic")
	}
	if !strings.Contains(res.Error, "kaboom") {
		t.Errorf("Error = %q, want panic message", res.Error)
	}
	if res.ChannelID != 7 {
		t.Errorf("ChannelID = %d, want 7", res.ChannelID)
	}
}

func TestDeliver_AdapterError(t *testing.T) {
	r := NewAdapterRegistry(zap.NewNop(), 0, 1, time.Second)
	r.Register("fail", AdapterFunc(func(context.Context, string, string, string) error {
		return errors.New("provider said no")
	}))
	res := r.Deliver(context.Background(), models.NotificationChannel{ID: 1, Type: "fail", Enabled: true}, "s", "b")
	if res.Success || res.Error != "provider said no" {
		t.Errorf("Deliver() = %+v", res)
	}
}

func TestDeliver_RateLimitedPerChannel(t *testing.T) {
	r := NewAdapterRegistry(zap.NewNop(), 0.001, 1, 50*time.Millisecond)
	r.Register("ok", AdapterFunc(func(context.Context, string, string, string) error { return nil }))

	ch := models.NotificationChannel{ID: 1, Type: "ok", Enabled: true}
	if res := r.Deliver(context.Background(), ch, "s", "b"); !res.Success {
		t.Fatalf("first delivery = %+v, want success", res)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if res := r.Deliver(ctx, ch, "s", "b"); res.Success {
		t.Error("second delivery within burst window succeeded, want rate limited")
	}

	other := models.NotificationChannel{ID: 2, Type: "ok", Enabled: true}
	if res := r.Deliver(context.Background(), other, "s", "b"); !res.Success {
		t.Errorf("other channel = %+v, want its own bucket", res)
	}
}

func TestDeliver_BurstWithDefaultConfig(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	r := NewAdapterRegistry(zap.NewNop(), cfg.RatePerSec, cfg.RateBurst, cfg.DeliveryTimeout)
	RegisterBuiltinAdapters(r, srv.Client())
	ch := models.NotificationChannel{ID: 1, Type: "webhook", Enabled: true, Config: `{"url":"` + srv.URL + `"}`}

	const n = 30
	results := make(chan Result, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Deliver(context.Background(), ch, "outage", "many targets down")
		}()
	}
	wg.Wait()
	close(results)

	for res := range results {
		if !res.Success {
			t.Errorf("Deliver() = %+v, want every burst delivery to succeed", res)
		}
	}
	if got := hits.Load(); got != n {
		t.Errorf("webhook received %d requests, want %d", got, n)
	}
}

func TestRegister_OverwriteAndTypes(t *testing.T) {
	r := testRegistry()
	want := []string{"alertmanager", "feishu", "resend", "telegram", "webhook", "wecom"}
	got := r.Types()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Types() = %v, want %v", got, want)
	}

	r.Register("webhook", AdapterFunc(func(context.Context, string, string, string) error { return nil }))
	if len(r.Types()) != len(want) {
		t.Errorf("overwrite changed type count to %d", len(r.Types()))
	}
	res := r.Deliver(context.Background(), models.NotificationChannel{Type: "webhook", Enabled: true, Config: "{}"}, "s", "b")
	if !res.Success {
		t.Errorf("overwritten adapter not used: %+v", res)
	}
}

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantURL string
		wantErr bool
	}{
		{"object", `{"url":"http://a"}`, "http://a", false},
		{"double encoded", `"{\"url\":\"http://b\"}"`, "http://b", false},
		{"empty", ``, "", true},
		{"garbage", `not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg WebhookConfig
			err := decodeConfig(tt.raw, &cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if cfg.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", cfg.URL, tt.wantURL)
			}
		})
	}
}

func configJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	return string(b)
}

func TestWebhookAdapter_SignatureAndHeaders(t *testing.T) {
	secret := "s3cret"
	var body []byte
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := NewWebhookAdapter(srv.Client())
	cfg := configJSON(t, WebhookConfig{URL: srv.URL, Secret: secret, Headers: map[string]string{"X-Team": "ops"}})
	if err := a.Send(context.Background(), cfg, "subj", "body"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if want := hex.EncodeToString(mac.Sum(nil)); headers.Get("X-Signature") != want {
		t.Errorf("X-Signature = %q, want %q", headers.Get("X-Signature"), want)
	}
	if headers.Get("X-Team") != "ops" {
		t.Errorf("X-Team = %q, want ops", headers.Get("X-Team"))
	}
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.Subject != "subj" || p.Content != "body" {
		t.Errorf("payload = %+v", p)
	}
}

func TestWebhookAdapter_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewWebhookAdapter(srv.Client())
	err := a.Send(context.Background(), configJSON(t, WebhookConfig{URL: srv.URL}), "s", "b")
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("non-2xx error = %v, want status 502", err)
	}

	err = a.Send(context.Background(), `{}`, "s", "b")
	if err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Errorf("missing url error = %v", err)
	}
}

func TestTelegramAdapter(t *testing.T) {
	var gotPath string
	var msg telegramMessage
	reply := `{"ok":true,"result":{"message_id":1}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&msg)
		_, _ = io.WriteString(w, reply)
	}))
	defer srv.Close()

	a := NewTelegramAdapter(srv.Client(), srv.URL)
	cfg := configJSON(t, TelegramConfig{BotToken: "123:abc", ChatID: "42"})

	if err := a.Send(context.Background(), cfg, "Subject", `line1\nline2`); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if msg.ChatID != "42" || msg.Text != "Subject\n\nline1\nline2" {
		t.Errorf("message = %+v", msg)
	}

	reply = `{"ok":false,"description":"Bad Request: chat not found"}`
	err := a.Send(context.Background(), cfg, "s", "b")
	if err == nil || err.Error() != "Bad Request: chat not found" {
		t.Errorf("error = %v, want provider description", err)
	}

	if err := a.Send(context.Background(), `{"botToken":"x"}`, "s", "b"); err == nil {
		t.Error("missing chatId accepted")
	}
}

func TestFeishuAdapter(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr string
	}{
		{"StatusCode zero", `{"StatusCode":0,"StatusMessage":"success"}`, ""},
		{"code zero", `{"code":0,"msg":"ok"}`, ""},
		{"failure message", `{"code":19001,"msg":"param invalid"}`, "param invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg feishuMessage
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&msg)
				_, _ = io.WriteString(w, tt.reply)
			}))
			defer srv.Close()

			err := NewFeishuAdapter(srv.Client()).Send(context.Background(),
				configJSON(t, FeishuConfig{WebhookURL: srv.URL}), "title", "text")
			if tt.wantErr == "" && err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if tt.wantErr != "" && (err == nil || err.Error() != tt.wantErr) {
				t.Fatalf("Send() error = %v, want %q", err, tt.wantErr)
			}
			if msg.MsgType != "interactive" || msg.Card.Header.Title.Content != "title" {
				t.Errorf("card = %+v", msg)
			}
		})
	}
}

func TestWeComAdapter(t *testing.T) {
	var msg wecomMessage
	reply := `{"errcode":0,"errmsg":"ok"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&msg)
		_, _ = io.WriteString(w, reply)
	}))
	defer srv.Close()

	a := NewWeComAdapter(srv.Client())
	cfg := configJSON(t, WeComConfig{WebhookURL: srv.URL})
	if err := a.Send(context.Background(), cfg, "Down", "details"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msg.MsgType != "markdown" || msg.Markdown.Content != "**Down**\n\ndetails" {
		t.Errorf("message = %+v", msg)
	}

	reply = `{"errcode":93000,"errmsg":"invalid webhook url"}`
	if err := a.Send(context.Background(), cfg, "s", "b"); err == nil || err.Error() != "invalid webhook url" {
		t.Errorf("error = %v", err)
	}
}

func TestResendAdapter(t *testing.T) {
	var email resendEmail
	var auth string
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&email)
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"message":"invalid from address"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	}))
	defer srv.Close()

	a := NewResendAdapter(srv.Client(), srv.URL)
	cfg := configJSON(t, ResendConfig{APIKey: "re_key", From: "beacon@example.com", To: "a@example.com, b@example.com"})

	if err := a.Send(context.Background(), cfg, "Subject", "one\ntwo"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if auth != "Bearer re_key" {
		t.Errorf("Authorization = %q", auth)
	}
	if len(email.To) != 2 || email.To[1] != "b@example.com" {
		t.Errorf("to = %v", email.To)
	}
	if email.HTML != "one<br>two" {
		t.Errorf("html = %q", email.HTML)
	}

	if err := a.Send(context.Background(), cfg, "Subject", "error: <script>x</script> & co\nnext"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if want := "error: &lt;script&gt;x&lt;/script&gt; &amp; co<br>next"; email.HTML != want {
		t.Errorf("html = %q, want %q", email.HTML, want)
	}

	status = http.StatusUnprocessableEntity
	if err := a.Send(context.Background(), cfg, "s", "b"); err == nil || err.Error() != "invalid from address" {
		t.Errorf("error = %v", err)
	}

	if err := a.Send(context.Background(), `{"apiKey":"k","from":"f"}`, "s", "b"); err == nil {
		t.Error("missing to accepted")
	}
}

func TestAlertmanagerAdapter_FiringAndResolved(t *testing.T) {
	var payload alertmanagerPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlertmanagerAdapter(srv.Client())
	cfg := configJSON(t, AlertmanagerConfig{URL: srv.URL})

	if err := a.Send(context.Background(), cfg, "api down", "details"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if payload.Version != "4" || payload.Status != "firing" {
		t.Errorf("payload = %+v", payload)
	}
	if len(payload.Alerts) != 1 || payload.Alerts[0].Annotations["summary"] != "api down" {
		t.Errorf("alerts = %+v", payload.Alerts)
	}

	if err := a.Send(withResolved(context.Background(), true), cfg, "api up", "details"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if payload.Status != "resolved" || payload.Alerts[0].EndsAt.IsZero() {
		t.Errorf("resolved payload = %+v", payload)
	}
}
