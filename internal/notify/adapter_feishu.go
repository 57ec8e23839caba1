package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Compile-time interface guard.
var _ Adapter = (*FeishuAdapter)(nil)

// FeishuConfig is the channel config for Feishu (Lark) group bots.
type FeishuConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

type feishuText struct {
	Content string `json:"content"`
	Tag     string `json:"tag"`
}

type feishuCard struct {
	Header struct {
		Title feishuText `json:"title"`
	} `json:"header"`
	Elements []feishuElement `json:"elements"`
}

type feishuElement struct {
	Tag  string     `json:"tag"`
	Text feishuText `json:"text"`
}

type feishuMessage struct {
	MsgType string     `json:"msg_type"`
	Card    feishuCard `json:"card"`
}

// Feishu answers with either StatusCode or code depending on API version.
type feishuResponse struct {
	StatusCode    *int   `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
	Code          *int   `json:"code"`
	Msg           string `json:"msg"`
}

// FeishuAdapter posts an interactive card to a Feishu bot webhook.
type FeishuAdapter struct {
	client *http.Client
}

func NewFeishuAdapter(client *http.Client) *FeishuAdapter {
	return &FeishuAdapter{client: client}
}

func (a *FeishuAdapter) Send(ctx context.Context, rawConfig, subject, body string) error {
	var cfg FeishuConfig
	if err := decodeConfig(rawConfig, &cfg); err != nil {
		return err
	}
	if cfg.WebhookURL == "" {
		return errors.New("feishu webhookUrl is required")
	}

	msg := feishuMessage{MsgType: "interactive"}
	msg.Card.Header.Title = feishuText{Content: subject, Tag: "plain_text"}
	msg.Card.Elements = []feishuElement{
		{Tag: "div", Text: feishuText{Content: body, Tag: "lark_md"}},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal feishu card: %w", err)
	}

	resp, err := postJSON(ctx, a.client, cfg.WebhookURL, payload, nil)
	if err != nil {
		return fmt.Errorf("feishu POST: %w", err)
	}
	raw := readBody(resp)

	var out feishuResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("feishu POST: status %d, unreadable response", resp.StatusCode)
	}
	if (out.StatusCode != nil && *out.StatusCode == 0) || (out.Code != nil && *out.Code == 0) {
		return nil
	}
	switch {
	case out.StatusMessage != "":
		return errors.New(out.StatusMessage)
	case out.Msg != "":
		return errors.New(out.Msg)
	}
	return fmt.Errorf("feishu POST: status %d", resp.StatusCode)
}
