package notify

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/HerbHall/beacon/internal/store"
	"github.com/HerbHall/beacon/internal/testutil"
	"github.com/HerbHall/beacon/pkg/models"
	"go.uber.org/zap"
)

func testStore(t *testing.T) *NotifyStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), "notify", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewNotifyStore(db.DB())
}

func testRegistry() *AdapterRegistry {
	r := NewAdapterRegistry(zap.NewNop(), 0, 1, 5*time.Second)
	RegisterBuiltinAdapters(r, &http.Client{})
	return r
}

func createChannel(t *testing.T, s *NotifyStore, c models.NotificationChannel) models.NotificationChannel {
	t.Helper()
	if err := s.CreateChannel(context.Background(), &c); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	return c
}

func createWebhookChannel(t *testing.T, s *NotifyStore, url string, userID int64) models.NotificationChannel {
	t.Helper()
	return createChannel(t, s, testutil.NewChannel(url, testutil.WithChannelOwner(userID)))
}

func createSettings(t *testing.T, s *NotifyStore, st models.NotificationSettings) models.NotificationSettings {
	t.Helper()
	if err := s.CreateSettings(context.Background(), &st); err != nil {
		t.Fatalf("CreateSettings: %v", err)
	}
	return st
}

func createTemplate(t *testing.T, s *NotifyStore, tpl models.NotificationTemplate) models.NotificationTemplate {
	t.Helper()
	if err := s.CreateTemplate(context.Background(), &tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return tpl
}
