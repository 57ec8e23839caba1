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
var _ Adapter = (*WebhookAdapter)(nil)

// WebhookConfig is the channel config for generic webhooks.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Secret  string            `json:"secret,omitempty"` //nolint:gosec // G101: config field name, not a credential
	Headers map[string]string `json:"headers,omitempty"`
}

// webhookPayload is the JSON body sent to webhook endpoints.
type webhookPayload struct {
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookAdapter POSTs the notification to an arbitrary URL. Any 2xx
// response counts as delivered.
type WebhookAdapter struct {
	client *http.Client
}

func NewWebhookAdapter(client *http.Client) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Send(ctx context.Context, rawConfig, subject, body string) error {
	var cfg WebhookConfig
	if err := decodeConfig(rawConfig, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return errors.New("webhook url is required")
	}

	payload, err := json.Marshal(webhookPayload{
		Subject:   subject,
		Content:   body,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	header := http.Header{}
	// HMAC-SHA256 over the exact body bytes.
	if cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(cfg.Secret))
		mac.Write(payload)
		header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	}
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	resp, err := postJSON(ctx, a.client, cfg.URL, payload, header)
	if err != nil {
		return fmt.Errorf("webhook POST %s: %w", cfg.URL, err)
	}
	readBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook POST %s: status %d", cfg.URL, resp.StatusCode)
	}
	return nil
}
