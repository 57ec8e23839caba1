package notify

import (
	"context"
	"fmt"

	"github.com/HerbHall/beacon/pkg/models"
)

const (
	defaultMonitorSubject = "【${status}】${name} monitor status changed"
	defaultMonitorContent = "🔔 Monitor status changed\n\n" +
		"📊 Service: ${name}\n" +
		"🔄 Status: ${status} (was: ${previous_status})\n" +
		"🕒 Time: ${time}\n\n" +
		"🔗 URL: ${url}\n" +
		"⏱️ Response time: ${response_time}\n" +
		"📝 Status code: ${status_code}\n" +
		"🎯 Expected: ${expected_status}\n\n" +
		"❗ Error: ${error}"

	defaultAgentSubject = "${name} agent ${status}"
	defaultAgentContent = "${name} ${error}\n\nHost: ${hostname}\nTime: ${time}"
)

// SeedResult reports what SeedDefaults created.
type SeedResult struct {
	TemplatesCreated int `json:"templates_created"`
	SettingsCreated  int `json:"settings_created"`
}

// SeedDefaults gives a user a default monitor and agent template and
// disabled global settings rows with no channels. Existing templates or
// global rows of a kind are left alone, so seeding twice is harmless.
func SeedDefaults(ctx context.Context, s *NotifyStore, userID int64) (SeedResult, error) {
	var res SeedResult

	templates := []models.NotificationTemplate{
		{
			Name:      "Monitor template",
			Type:      models.NotificationTypeMonitor,
			Subject:   defaultMonitorSubject,
			Content:   defaultMonitorContent,
			IsDefault: true,
			CreatedBy: userID,
		},
		{
			Name:      "Agent template",
			Type:      models.NotificationTypeAgent,
			Subject:   defaultAgentSubject,
			Content:   defaultAgentContent,
			IsDefault: true,
			CreatedBy: userID,
		},
	}
	for i := range templates {
		n, err := s.CountTemplates(ctx, userID, templates[i].Type)
		if err != nil {
			return res, err
		}
		if n > 0 {
			continue
		}
		if err := s.CreateTemplate(ctx, &templates[i]); err != nil {
			return res, fmt.Errorf("seed %s template: %w", templates[i].Type, err)
		}
		res.TemplatesCreated++
	}

	settings := []models.NotificationSettings{
		{
			UserID:          userID,
			TargetType:      models.TargetGlobalMonitor,
			OnDown:          true,
			OnRecovery:      true,
			OnOffline:       true,
			CPUThreshold:    90,
			MemoryThreshold: 85,
			DiskThreshold:   90,
			Channels:        "[]",
		},
		{
			UserID:            userID,
			TargetType:        models.TargetGlobalAgent,
			OnDown:            true,
			OnRecovery:        true,
			OnOffline:         true,
			OnCPUThreshold:    true,
			OnMemoryThreshold: true,
			OnDiskThreshold:   true,
			CPUThreshold:      80,
			MemoryThreshold:   80,
			DiskThreshold:     90,
			Channels:          "[]",
		},
	}
	for i := range settings {
		n, err := s.CountSettings(ctx, userID, settings[i].TargetType)
		if err != nil {
			return res, err
		}
		if n > 0 {
			continue
		}
		if err := s.CreateSettings(ctx, &settings[i]); err != nil {
			return res, fmt.Errorf("seed %s settings: %w", settings[i].TargetType, err)
		}
		res.SettingsCreated++
	}
	return res, nil
}
