package uptime

import (
	"database/sql"

	"github.com/HerbHall/beacon/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create monitor tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS monitors (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL,
						url TEXT NOT NULL,
						method TEXT NOT NULL DEFAULT 'GET',
						headers TEXT NOT NULL DEFAULT '{}',
						body TEXT NOT NULL DEFAULT '',
						interval INTEGER NOT NULL DEFAULT 60,
						timeout INTEGER NOT NULL DEFAULT 30,
						expected_status INTEGER NOT NULL DEFAULT 200,
						active INTEGER NOT NULL DEFAULT 1,
						status TEXT NOT NULL DEFAULT '',
						response_time INTEGER NOT NULL DEFAULT 0,
						last_checked DATETIME,
						created_by INTEGER NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitors_active ON monitors(active)`,

					`CREATE TABLE IF NOT EXISTS monitor_status_history (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						monitor_id INTEGER NOT NULL,
						status TEXT NOT NULL,
						response_time INTEGER NOT NULL DEFAULT 0,
						status_code INTEGER NOT NULL DEFAULT 0,
						error TEXT,
						timestamp DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_history_monitor_time
						ON monitor_status_history(monitor_id, timestamp)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_history_time ON monitor_status_history(timestamp)`,

					`CREATE TABLE IF NOT EXISTS monitor_daily_stats (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						monitor_id INTEGER NOT NULL,
						date TEXT NOT NULL,
						total_checks INTEGER NOT NULL,
						up_checks INTEGER NOT NULL,
						down_checks INTEGER NOT NULL,
						avg_response_time REAL NOT NULL DEFAULT 0,
						min_response_time INTEGER NOT NULL DEFAULT 0,
						max_response_time INTEGER NOT NULL DEFAULT 0,
						availability REAL NOT NULL DEFAULT 0,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_monitor_daily_stats_monitor_date
						ON monitor_daily_stats(monitor_id, date)`,
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
