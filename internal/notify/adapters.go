package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Adapter delivers one rendered notification to one provider. rawConfig is
// the channel's config column, untouched.
type Adapter interface {
	Send(ctx context.Context, rawConfig, subject, body string) error
}

// AdapterFunc lets a plain function serve as an Adapter.
type AdapterFunc func(ctx context.Context, rawConfig, subject, body string) error

func (f AdapterFunc) Send(ctx context.Context, rawConfig, subject, body string) error {
	return f(ctx, rawConfig, subject, body)
}

// Result is the outcome of a single delivery attempt.
type Result struct {
	ChannelID int64  `json:"channel_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// AdapterRegistry maps channel types to adapters and, when configured,
// applies a token bucket per channel before handing off.
type AdapterRegistry struct {
	logger  *zap.Logger
	timeout time.Duration
	limit   rate.Limit
	burst   int

	mu       sync.RWMutex
	adapters map[string]Adapter

	limMu    sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewAdapterRegistry creates an empty registry. A ratePerSec <= 0 disables
// outbound rate limiting; a timeout <= 0 leaves deadlines to the caller.
func NewAdapterRegistry(logger *zap.Logger, ratePerSec float64, burst int, timeout time.Duration) *AdapterRegistry {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	if burst < 1 {
		burst = 1
	}
	return &AdapterRegistry{
		logger:   logger,
		timeout:  timeout,
		limit:    limit,
		burst:    burst,
		adapters: make(map[string]Adapter),
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Register binds an adapter to a channel type, replacing any previous one.
func (r *AdapterRegistry) Register(channelType string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[channelType]; exists {
		r.logger.Warn("overwriting channel adapter", zap.String("channel_type", channelType))
	}
	r.adapters[channelType] = a
}

// Types returns the registered channel types in sorted order.
func (r *AdapterRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func (r *AdapterRegistry) lookup(channelType string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[channelType]
	return a, ok
}

func (r *AdapterRegistry) limiter(channelID int64) *rate.Limiter {
	r.limMu.Lock()
	defer r.limMu.Unlock()
	l, ok := r.limiters[channelID]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[channelID] = l
	}
	return l
}

// Deliver sends subject and body through the channel's adapter. It never
// returns an error: every failure, including an adapter panic, is reported
// in the Result.
func (r *AdapterRegistry) Deliver(ctx context.Context, ch models.NotificationChannel, subject, body string) (res Result) {
	res.ChannelID = ch.ID
	start := time.Now()
	defer func() {
		outcome := models.DeliverySuccess
		if !res.Success {
			outcome = models.DeliveryFailed
		}
		deliveriesTotal.WithLabelValues(ch.Type, outcome).Inc()
		deliveryDuration.WithLabelValues(ch.Type).Observe(time.Since(start).Seconds())
	}()

	if !ch.Enabled {
		res.Error = "channel disabled"
		return res
	}
	adapter, ok := r.lookup(ch.Type)
	if !ok {
		r.logger.Warn("no adapter for channel type",
			zap.Int64("channel_id", ch.ID),
			zap.String("channel_type", ch.Type),
		)
		res.Error = "unsupported channel type"
		return res
	}

	// Queued deliveries wait for a token under the caller's context only;
	// the delivery timeout bounds the outbound call itself.
	if r.limit != rate.Inf {
		if err := r.limiter(ch.ID).Wait(ctx); err != nil {
			res.Error = fmt.Sprintf("rate limited: %v", err)
			return res
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("channel adapter panicked",
				zap.Int64("channel_id", ch.ID),
				zap.String("channel_type", ch.Type),
				zap.Any("panic", p),
			)
			res.Success = false
			res.Error = fmt.Sprintf("adapter panic: %v", p)
		}
	}()

	if err := adapter.Send(ctx, ch.Config, subject, body); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

// RegisterBuiltinAdapters installs every adapter shipped with Beacon.
func RegisterBuiltinAdapters(r *AdapterRegistry, client *http.Client) {
	r.Register("webhook", NewWebhookAdapter(client))
	r.Register("telegram", NewTelegramAdapter(client, ""))
	r.Register("feishu", NewFeishuAdapter(client))
	r.Register("wecom", NewWeComAdapter(client))
	r.Register("resend", NewResendAdapter(client, ""))
	r.Register("alertmanager", NewAlertmanagerAdapter(client))
}

// decodeConfig parses a channel config into target. Configs that were
// stored as a JSON string holding JSON are unwrapped once.
func decodeConfig(raw string, target any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("channel config is empty")
	}
	data := []byte(raw)
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		data = []byte(inner)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse channel config: %w", err)
	}
	return nil
}

// postJSON POSTs an encoded JSON body. The caller owns resp.Body.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Beacon-Notify/0.1")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	return client.Do(req)
}

// readBody reads at most 64 KiB of a provider response and closes it.
func readBody(resp *http.Response) []byte {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return b
}
