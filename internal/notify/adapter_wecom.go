package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Compile-time interface guard.
var _ Adapter = (*WeComAdapter)(nil)

// WeComConfig is the channel config for WeCom group robots.
type WeComConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

type wecomMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
}

type wecomResponse struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// WeComAdapter posts a markdown message to a WeCom robot webhook.
type WeComAdapter struct {
	client *http.Client
}

func NewWeComAdapter(client *http.Client) *WeComAdapter {
	return &WeComAdapter{client: client}
}

func (a *WeComAdapter) Send(ctx context.Context, rawConfig, subject, body string) error {
	var cfg WeComConfig
	if err := decodeConfig(rawConfig, &cfg); err != nil {
		return err
	}
	if cfg.WebhookURL == "" {
		return errors.New("wecom webhookUrl is required")
	}

	msg := wecomMessage{MsgType: "markdown"}
	msg.Markdown.Content = "**" + subject + "**\n\n" + body
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal wecom message: %w", err)
	}

	resp, err := postJSON(ctx, a.client, cfg.WebhookURL, payload, nil)
	if err != nil {
		return fmt.Errorf("wecom POST: %w", err)
	}
	raw := readBody(resp)

	var out wecomResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("wecom POST: status %d, unreadable response", resp.StatusCode)
	}
	if out.ErrCode != nil && *out.ErrCode == 0 {
		return nil
	}
	if out.ErrMsg != "" {
		return errors.New(out.ErrMsg)
	}
	return fmt.Errorf("wecom POST: status %d", resp.StatusCode)
}
