package agent

import (
	"database/sql"

	"github.com/HerbHall/beacon/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create agents and agent_metrics tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE agents (
						id           INTEGER PRIMARY KEY AUTOINCREMENT,
						name         TEXT NOT NULL,
						keepalive    INTEGER NOT NULL DEFAULT 60,
						updated_at   DATETIME NOT NULL,
						status       TEXT NOT NULL DEFAULT 'active',
						hostname     TEXT NOT NULL DEFAULT '',
						ip_addresses TEXT NOT NULL DEFAULT '[]',
						os           TEXT NOT NULL DEFAULT '',
						created_by   INTEGER NOT NULL,
						created_at   DATETIME NOT NULL
					)`,
					`CREATE INDEX idx_agents_status ON agents(status)`,
					`CREATE INDEX idx_agents_created_by ON agents(created_by)`,
					`CREATE TABLE agent_metrics (
						id           INTEGER PRIMARY KEY AUTOINCREMENT,
						agent_id     INTEGER NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
						timestamp    DATETIME NOT NULL,
						cpu_usage    REAL NOT NULL DEFAULT 0,
						memory_usage REAL NOT NULL DEFAULT 0,
						disk_usage   REAL NOT NULL DEFAULT 0
					)`,
					`CREATE INDEX idx_agent_metrics_agent_ts ON agent_metrics(agent_id, timestamp)`,
					`CREATE INDEX idx_agent_metrics_ts ON agent_metrics(timestamp)`,
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
