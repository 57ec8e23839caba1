package uptime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/beacon/internal/notify"
	"github.com/HerbHall/beacon/internal/store"
	"github.com/HerbHall/beacon/pkg/models"
	"github.com/HerbHall/beacon/pkg/plugin"
	"go.uber.org/zap"
)

func testStore(t *testing.T) (*store.SQLiteStore, *UptimeStore) {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), "uptime", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, NewUptimeStore(db.DB())
}

// testModule returns an initialized module backed by an in-memory store
// with n as its notifier.
func testModule(t *testing.T, n notify.Notifier) *Module {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop(), Store: db}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	m.notify = n
	return m
}

func createMonitor(t *testing.T, s *UptimeStore, mon models.Monitor) models.Monitor {
	t.Helper()
	if err := s.CreateMonitor(context.Background(), &mon); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	return mon
}

type policyCall struct {
	UserID     int64
	TargetType string
	TargetID   int64
	Prev, Cur  string
}

// fakeNotifier records policy calls and sends. ShouldNotify returns
// decision; panicOn makes it panic for one target.
type fakeNotifier struct {
	mu       sync.Mutex
	decision notify.Decision
	panicOn  int64
	calls    []policyCall
	sent     []notify.SendRequest
}

func (f *fakeNotifier) ShouldNotify(_ context.Context, userID int64, targetType string, targetID int64, prev, cur string) (notify.Decision, error) {
	if f.panicOn != 0 && targetID == f.panicOn {
		panic("policy exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, policyCall{userID, targetType, targetID, prev, cur})
	return f.decision, nil
}

func (f *fakeNotifier) CheckThreshold(context.Context, int64, int64, string, float64) (notify.ThresholdDecision, error) {
	return notify.ThresholdDecision{}, nil
}

func (f *fakeNotifier) Send(_ context.Context, req notify.SendRequest) notify.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return notify.SendResult{Success: true, DispatchID: "test"}
}

func (f *fakeNotifier) Location() *time.Location { return time.UTC }

func (f *fakeNotifier) snapshot() ([]policyCall, []notify.SendRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]policyCall(nil), f.calls...), append([]notify.SendRequest(nil), f.sent...)
}
