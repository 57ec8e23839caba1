package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
)

const resendAPI = "https://api.resend.com"

// Compile-time interface guard.
var _ Adapter = (*ResendAdapter)(nil)

// ResendConfig is the channel config for Resend email. To is a comma
// separated recipient list.
type ResendConfig struct {
	APIKey string `json:"apiKey"` //nolint:gosec // G101: config field name, not a credential
	From   string `json:"from"`
	To     string `json:"to"`
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendAdapter sends an HTML email through the Resend API.
type ResendAdapter struct {
	client  *http.Client
	baseURL string
}

// NewResendAdapter creates the adapter. An empty baseURL targets the public
// Resend API.
func NewResendAdapter(client *http.Client, baseURL string) *ResendAdapter {
	if baseURL == "" {
		baseURL = resendAPI
	}
	return &ResendAdapter{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (a *ResendAdapter) Send(ctx context.Context, rawConfig, subject, body string) error {
	var cfg ResendConfig
	if err := decodeConfig(rawConfig, &cfg); err != nil {
		return err
	}
	switch {
	case cfg.APIKey == "":
		return errors.New("resend apiKey is required")
	case cfg.From == "":
		return errors.New("resend from is required")
	case strings.TrimSpace(cfg.To) == "":
		return errors.New("resend to is required")
	}

	var to []string
	for _, addr := range strings.Split(cfg.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}

	payload, err := json.Marshal(resendEmail{
		From:    cfg.From,
		To:      to,
		Subject: subject,
		HTML:    strings.ReplaceAll(html.EscapeString(body), "\n", "<br>"),
	})
	if err != nil {
		return fmt.Errorf("marshal resend email: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	resp, err := postJSON(ctx, a.client, a.baseURL+"/emails", payload, header)
	if err != nil {
		return fmt.Errorf("resend POST: %w", err)
	}
	raw := readBody(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var out struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &out) == nil && out.Message != "" {
		return errors.New(out.Message)
	}
	return fmt.Errorf("resend POST: status %d", resp.StatusCode)
}
