package agent

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

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testModule returns an initialized module on an in-memory store with a
// fixed clock and n as its notifier.
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
	m.now = func() time.Time { return testNow }
	m.notify = n
	return m
}

func createAgent(t *testing.T, s *AgentStore, a models.Agent) models.Agent {
	t.Helper()
	if err := s.CreateAgent(context.Background(), &a); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return a
}

type policyCall struct {
	TargetID  int64
	Prev, Cur string
}

// fakeNotifier returns decision for every status change and the entry in
// thresholds for a metric; metrics without an entry do not alert.
type fakeNotifier struct {
	mu         sync.Mutex
	decision   notify.Decision
	thresholds map[string]notify.ThresholdDecision
	panicOn    int64
	calls      []policyCall
	sent       []notify.SendRequest
}

func (f *fakeNotifier) ShouldNotify(_ context.Context, _ int64, _ string, targetID int64, prev, cur string) (notify.Decision, error) {
	if f.panicOn != 0 && targetID == f.panicOn {
		panic("policy exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, policyCall{targetID, prev, cur})
	return f.decision, nil
}

func (f *fakeNotifier) CheckThreshold(_ context.Context, _, _ int64, metric string, value float64) (notify.ThresholdDecision, error) {
	d, ok := f.thresholds[metric]
	if !ok || value < d.Threshold {
		return notify.ThresholdDecision{}, nil
	}
	return d, nil
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
