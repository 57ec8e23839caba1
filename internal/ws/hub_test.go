package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/beacon/internal/event"
	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

func newTestClient(userID int64, buf int) *Client {
	return &Client{
		userID: userID,
		send:   make(chan Message, buf),
		logger: zap.NewNop(),
	}
}

type ownedPayload struct{ user int64 }

func (p ownedPayload) OwnerID() int64 { return p.user }

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newTestClient(1, 1)

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	hub.Unregister(c) // second call is a no-op
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestHub_BroadcastFiltersByUser(t *testing.T) {
	hub := NewHub(zap.NewNop())
	alice := newTestClient(1, 4)
	bob := newTestClient(2, 4)
	admin := newTestClient(0, 4)
	for _, c := range []*Client{alice, bob, admin} {
		hub.Register(c)
	}

	hub.Broadcast(Message{Type: "uptime.monitor.status_changed", UserID: 1})
	hub.Broadcast(Message{Type: "uptime.tick.completed"})

	tests := []struct {
		name   string
		client *Client
		want   int
	}{
		{name: "owner", client: alice, want: 2},
		{name: "other user", client: bob, want: 1},
		{name: "unfiltered", client: admin, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.client.send); got != tt.want {
				t.Errorf("queued = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newTestClient(0, 1)
	hub.Register(c)

	hub.Broadcast(Message{Type: "agent.status_changed"})
	hub.Broadcast(Message{Type: "agent.status_changed"}) // dropped, must not block

	if got := len(c.send); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
}

func TestHub_ConcurrentUse(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := newTestClient(id, 8)
			hub.Register(c)
			hub.Broadcast(Message{Type: "notify.dispatched", UserID: id})
			hub.Unregister(c)
		}(int64(i))
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestHandler_RelaysOwnedEvents(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	h := NewHandler(bus, zap.NewNop())
	defer h.Close()

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/events?user_id=7"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for the server side to register the client.
	deadline := time.Now().Add(2 * time.Second)
	for h.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	_ = bus.Publish(ctx, plugin.Event{Topic: "agent.status_changed", Source: "agent", Payload: ownedPayload{user: 8}})
	_ = bus.Publish(ctx, plugin.Event{Topic: "internal.debug", Source: "x"})
	_ = bus.Publish(ctx, plugin.Event{Topic: "agent.status_changed", Source: "agent", Payload: ownedPayload{user: 7}})

	var msg Message
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Type != "agent.status_changed" || msg.UserID != 7 || msg.Source != "agent" {
		t.Errorf("message = %+v, want agent.status_changed for user 7", msg)
	}
}

func TestHandler_RejectsBadUserID(t *testing.T) {
	h := NewHandler(nil, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ws/events?user_id=abc", http.NoBody))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
