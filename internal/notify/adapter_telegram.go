package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// Compile-time interface guard.
var _ Adapter = (*TelegramAdapter)(nil)

// TelegramConfig is the channel config for Telegram bots.
type TelegramConfig struct {
	BotToken string `json:"botToken"` //nolint:gosec // G101: config field name, not a credential
	ChatID   string `json:"chatId"`
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// TelegramAdapter sends through the Bot API sendMessage method. Delivery
// succeeds only when the API answers ok=true.
type TelegramAdapter struct {
	client  *http.Client
	baseURL string
}

// NewTelegramAdapter creates the adapter. An empty baseURL targets the
// public Bot API.
func NewTelegramAdapter(client *http.Client, baseURL string) *TelegramAdapter {
	if baseURL == "" {
		baseURL = telegramAPI
	}
	return &TelegramAdapter{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (a *TelegramAdapter) Send(ctx context.Context, rawConfig, subject, body string) error {
	var cfg TelegramConfig
	if err := decodeConfig(rawConfig, &cfg); err != nil {
		return err
	}
	if cfg.BotToken == "" {
		return errors.New("telegram botToken is required")
	}
	if cfg.ChatID == "" {
		return errors.New("telegram chatId is required")
	}

	// Templates stored with escaped newlines still render as line breaks.
	text := strings.ReplaceAll(subject+"\n\n"+body, `\n`, "\n")
	payload, err := json.Marshal(telegramMessage{ChatID: cfg.ChatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	endpoint := a.baseURL + "/bot" + cfg.BotToken + "/sendMessage"
	resp, err := postJSON(ctx, a.client, endpoint, payload, nil)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	raw := readBody(resp)

	var out telegramResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("telegram sendMessage: status %d, unreadable response", resp.StatusCode)
	}
	if !out.OK {
		if out.Description != "" {
			return errors.New(out.Description)
		}
		return fmt.Errorf("telegram sendMessage: status %d", resp.StatusCode)
	}
	return nil
}
