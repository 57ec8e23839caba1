package notify

import (
	"database/sql"

	"github.com/HerbHall/beacon/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create notification tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS notification_settings (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						user_id INTEGER NOT NULL,
						target_type TEXT NOT NULL,
						target_id INTEGER NOT NULL DEFAULT 0,
						enabled INTEGER NOT NULL DEFAULT 1,
						on_down INTEGER NOT NULL DEFAULT 1,
						on_recovery INTEGER NOT NULL DEFAULT 1,
						on_offline INTEGER NOT NULL DEFAULT 1,
						on_cpu_threshold INTEGER NOT NULL DEFAULT 0,
						on_memory_threshold INTEGER NOT NULL DEFAULT 0,
						on_disk_threshold INTEGER NOT NULL DEFAULT 0,
						cpu_threshold REAL NOT NULL DEFAULT 90,
						memory_threshold REAL NOT NULL DEFAULT 85,
						disk_threshold REAL NOT NULL DEFAULT 90,
						channels TEXT NOT NULL DEFAULT '[]',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_notification_settings_target
						ON notification_settings(user_id, target_type, target_id)`,

					`CREATE TABLE IF NOT EXISTS notification_channels (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL,
						type TEXT NOT NULL,
						config TEXT NOT NULL DEFAULT '{}',
						enabled INTEGER NOT NULL DEFAULT 1,
						created_by INTEGER NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_notification_channels_owner ON notification_channels(created_by)`,

					`CREATE TABLE IF NOT EXISTS notification_templates (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL,
						type TEXT NOT NULL,
						subject TEXT NOT NULL,
						content TEXT NOT NULL,
						is_default INTEGER NOT NULL DEFAULT 0,
						created_by INTEGER NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_notification_templates_owner
						ON notification_templates(created_by, type)`,

					`CREATE TABLE IF NOT EXISTS notification_history (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						dispatch_id TEXT NOT NULL,
						user_id INTEGER NOT NULL,
						type TEXT NOT NULL,
						target_id INTEGER NOT NULL,
						channel_id INTEGER NOT NULL,
						template_id INTEGER NOT NULL,
						status TEXT NOT NULL,
						content TEXT NOT NULL,
						error TEXT,
						created_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_notification_history_user_time
						ON notification_history(user_id, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_notification_history_dispatch
						ON notification_history(dispatch_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
