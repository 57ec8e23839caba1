package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "beacon",
		Name:      "ws_clients",
		Help:      "Connected event-stream clients.",
	})
	wsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "ws_dropped_messages_total",
		Help:      "Messages dropped because a client send buffer was full.",
	})
)

func init() {
	prometheus.MustRegister(wsClients, wsDropped)
}

// Client represents a connected event-stream client. A zero userID
// subscribes to every user's events.
type Client struct {
	conn   *websocket.Conn
	userID int64
	send   chan Message
	logger *zap.Logger
}

// wants reports whether the client should receive msg.
func (c *Client) wants(msg Message) bool {
	return c.userID == 0 || msg.UserID == 0 || msg.UserID == c.userID
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	wsClients.Set(float64(n))
	h.logger.Debug("websocket client connected", zap.Int64("user_id", c.userID))
}

// Unregister removes a client and closes its send channel. Safe to call
// for a client that was never registered.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	wsClients.Set(float64(n))
	h.logger.Debug("websocket client disconnected", zap.Int64("user_id", c.userID))
}

// Broadcast queues msg for every interested client. Slow clients drop
// messages rather than block the publisher.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			wsDropped.Inc()
			h.logger.Warn("client send buffer full, dropping message",
				zap.Int64("user_id", c.userID),
				zap.String("type", msg.Type),
			)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump drains the client's send channel onto the connection.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}
		}
	}
}

// readPump discards client frames; it returns when the client goes away.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
