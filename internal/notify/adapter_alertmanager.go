package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Compile-time interface guard.
var _ Adapter = (*AlertmanagerAdapter)(nil)

// AlertmanagerConfig is the channel config for Alertmanager-compatible
// receivers.
type AlertmanagerConfig struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"` //nolint:gosec // G101: config field name, not a credential
}

// alertmanagerPayload matches the Prometheus Alertmanager webhook receiver format.
type alertmanagerPayload struct {
	Version string              `json:"version"`
	Status  string              `json:"status"`
	Alerts  []alertmanagerAlert `json:"alerts"`
}

type alertmanagerAlert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	EndsAt      time.Time         `json:"endsAt"`
}

// AlertmanagerAdapter delivers notifications in Alertmanager webhook (v4)
// format. Recovery notifications are sent as resolved.
type AlertmanagerAdapter struct {
	client *http.Client
}

func NewAlertmanagerAdapter(client *http.Client) *AlertmanagerAdapter {
	return &AlertmanagerAdapter{client: client}
}

func (a *AlertmanagerAdapter) Send(ctx context.Context, rawConfig, subject, body string) error {
	var cfg AlertmanagerConfig
	if err := decodeConfig(rawConfig, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return errors.New("alertmanager url is required")
	}

	status := "firing"
	if alertResolved(ctx) {
		status = "resolved"
	}
	now := time.Now().UTC()
	alert := alertmanagerAlert{
		Status: status,
		Labels: map[string]string{
			"alertname": "BeaconNotification",
			"source":    "beacon",
		},
		Annotations: map[string]string{
			"summary":     subject,
			"description": body,
		},
		StartsAt: now,
	}
	if status == "resolved" {
		alert.EndsAt = now
	}

	payload, err := json.Marshal(alertmanagerPayload{
		Version: "4",
		Status:  status,
		Alerts:  []alertmanagerAlert{alert},
	})
	if err != nil {
		return fmt.Errorf("marshal alertmanager payload: %w", err)
	}

	header := http.Header{}
	if cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(cfg.Secret))
		mac.Write(payload)
		header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := postJSON(ctx, a.client, cfg.URL, payload, header)
	if err != nil {
		return fmt.Errorf("alertmanager POST %s: %w", cfg.URL, err)
	}
	readBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alertmanager POST %s: status %d", cfg.URL, resp.StatusCode)
	}
	return nil
}

type resolvedKey struct{}

// withResolved marks the delivery context as a recovery notification.
func withResolved(ctx context.Context, resolved bool) context.Context {
	return context.WithValue(ctx, resolvedKey{}, resolved)
}

func alertResolved(ctx context.Context) bool {
	v, _ := ctx.Value(resolvedKey{}).(bool)
	return v
}
