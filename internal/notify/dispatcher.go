package notify

import (
	"context"
	"encoding/json"

	"github.com/HerbHall/beacon/pkg/models"
	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SendRequest asks the dispatcher to render the user's template for Type
// and deliver it to ChannelIDs.
type SendRequest struct {
	Type       string            `json:"type"`
	TargetID   int64             `json:"target_id"`
	Variables  map[string]string `json:"variables"`
	ChannelIDs []int64           `json:"channel_ids"`
	UserID     int64             `json:"user_id"`
}

// SendResult reports every delivery attempt of one Send. Success is true
// when at least one channel accepted the notification.
type SendResult struct {
	Success    bool     `json:"success"`
	DispatchID string   `json:"dispatch_id,omitempty"`
	Results    []Result `json:"results"`
}

// historyContent is stored in notification_history.content.
type historyContent struct {
	Subject   string            `json:"subject"`
	Content   string            `json:"content"`
	Variables map[string]string `json:"variables"`
}

// Dispatcher renders notifications and fans them out to channels.
type Dispatcher struct {
	store          *NotifyStore
	adapters       *AdapterRegistry
	bus            plugin.Publisher
	logger         *zap.Logger
	maxConcurrency int
}

// NewDispatcher creates a Dispatcher. bus may be nil.
func NewDispatcher(store *NotifyStore, adapters *AdapterRegistry, bus plugin.Publisher, logger *zap.Logger, maxConcurrency int) *Dispatcher {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Dispatcher{
		store:          store,
		adapters:       adapters,
		bus:            bus,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Send renders and delivers one notification. It never fails as a whole:
// template and channel problems yield an unsuccessful result, and each
// delivery attempt is recorded in history whatever its outcome.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) SendResult {
	empty := SendResult{Results: []Result{}}
	if len(req.ChannelIDs) == 0 {
		return empty
	}

	tpl, err := d.store.GetDefaultTemplate(ctx, req.UserID, req.Type)
	if err != nil {
		d.logger.Warn("failed to load notification template",
			zap.Int64("user_id", req.UserID),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		dispatchesTotal.WithLabelValues(req.Type, "no_template").Inc()
		return empty
	}
	if tpl == nil {
		d.logger.Warn("no notification template",
			zap.Int64("user_id", req.UserID),
			zap.String("type", req.Type),
		)
		dispatchesTotal.WithLabelValues(req.Type, "no_template").Inc()
		return empty
	}

	subject, body := Render(tpl, req.Variables)

	channels, err := d.store.GetChannels(ctx, req.UserID, req.ChannelIDs)
	if err != nil {
		d.logger.Warn("failed to load notification channels",
			zap.Int64("user_id", req.UserID),
			zap.Error(err),
		)
		dispatchesTotal.WithLabelValues(req.Type, "no_channels").Inc()
		return empty
	}
	if len(channels) == 0 {
		d.logger.Debug("no channels resolved",
			zap.Int64("user_id", req.UserID),
			zap.Int64s("channel_ids", req.ChannelIDs),
		)
		dispatchesTotal.WithLabelValues(req.Type, "no_channels").Inc()
		return empty
	}

	content, err := json.Marshal(historyContent{Subject: subject, Content: body, Variables: req.Variables})
	if err != nil {
		content = []byte(`{}`)
	}

	dispatchID := uuid.NewString()
	deliverCtx := withResolved(ctx, isRecovery(req.Variables))
	results := make([]Result, len(channels))

	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)
	for i := range channels {
		ch := channels[i]
		g.Go(func() error {
			res := d.adapters.Deliver(deliverCtx, ch, subject, body)
			results[i] = res
			d.record(ctx, req, dispatchID, tpl.ID, string(content), res)
			return nil
		})
	}
	_ = g.Wait()

	out := SendResult{DispatchID: dispatchID, Results: results}
	failed := 0
	for _, r := range results {
		if r.Success {
			out.Success = true
		} else {
			failed++
		}
	}

	outcome := "success"
	if !out.Success {
		outcome = "failed"
	}
	dispatchesTotal.WithLabelValues(req.Type, outcome).Inc()
	d.logger.Info("notification dispatched",
		zap.String("dispatch_id", dispatchID),
		zap.String("type", req.Type),
		zap.Int64("target_id", req.TargetID),
		zap.Int("channels", len(results)),
		zap.Int("failed", failed),
	)

	if d.bus != nil {
		_ = d.bus.Publish(ctx, plugin.Event{
			Topic:  TopicDispatched,
			Source: "notify",
			Payload: DispatchedEvent{
				UserID:     req.UserID,
				DispatchID: dispatchID,
				Type:       req.Type,
				TargetID:   req.TargetID,
				Success:    out.Success,
				Attempts:   len(results),
				Failed:     failed,
			},
		})
	}
	return out
}

func (d *Dispatcher) record(ctx context.Context, req SendRequest, dispatchID string, templateID int64, content string, res Result) {
	status := models.DeliverySuccess
	if !res.Success {
		status = models.DeliveryFailed
		d.logger.Warn("notification delivery failed",
			zap.String("dispatch_id", dispatchID),
			zap.Int64("channel_id", res.ChannelID),
			zap.String("error", res.Error),
		)
	}
	h := &models.NotificationHistory{
		DispatchID: dispatchID,
		UserID:     req.UserID,
		Type:       req.Type,
		TargetID:   req.TargetID,
		ChannelID:  res.ChannelID,
		TemplateID: templateID,
		Status:     status,
		Content:    content,
		Error:      res.Error,
	}
	if err := d.store.InsertHistory(context.WithoutCancel(ctx), h); err != nil {
		d.logger.Warn("failed to record notification history",
			zap.String("dispatch_id", dispatchID),
			zap.Int64("channel_id", res.ChannelID),
			zap.Error(err),
		)
	}
}

func isRecovery(vars map[string]string) bool {
	s := vars["status"]
	return s == StatusUp || s == StatusOnline
}
