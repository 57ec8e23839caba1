// Package ws streams Beacon bus events (monitor and agent status changes,
// threshold breaches, notification dispatches) to websocket clients.
package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// Handler serves GET /api/v1/ws/events.
type Handler struct {
	hub         *Hub
	logger      *zap.Logger
	unsubscribe func()
}

// NewHandler creates the handler and subscribes it to the bus. A nil bus
// gives a handler that accepts connections but never sends anything.
func NewHandler(bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:         NewHub(logger),
		logger:      logger,
		unsubscribe: func() {},
	}
	if bus != nil {
		h.unsubscribe = bus.SubscribeAll(h.relay)
	}
	return h
}

// Close detaches the handler from the bus.
func (h *Handler) Close() {
	h.unsubscribe()
}

// RegisterRoutes registers the event stream route.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEvents)
}

// relay converts a bus event into a Message and broadcasts it.
func (h *Handler) relay(_ context.Context, event plugin.Event) {
	if !relayed(event.Topic) {
		return
	}
	msg := Message{
		Type:      event.Topic,
		Source:    event.Source,
		Timestamp: event.Timestamp,
		Data:      event.Payload,
	}
	if o, ok := event.Payload.(Owned); ok {
		msg.UserID = o.OwnerID()
	}
	h.hub.Broadcast(msg)
}

func relayed(topic string) bool {
	for _, p := range relayedPrefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

// handleEvents upgrades the connection and streams events. The optional
// user_id query parameter limits the stream to one user's targets.
//
//	@Summary	Event stream
//	@Tags		events
//	@Param		user_id	query	int	false	"Only events owned by this user"
//	@Success	101
//	@Router		/ws/events [get]
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		userID = id
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Read-only stream of non-secret status data; dashboards on other
		// origins may subscribe.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		userID: userID,
		send:   make(chan Message, 256),
		logger: h.logger,
	}
	h.hub.Register(client)
	h.logger.Debug("event stream client connected",
		zap.Int64("user_id", userID),
		zap.Int("clients", h.hub.ClientCount()),
	)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
	h.logger.Debug("event stream client disconnected", zap.Int("clients", h.hub.ClientCount()))
}
