package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
)

// AgentStore provides database access for agents and their short-retention
// metric samples.
type AgentStore struct {
	db *sql.DB
}

// NewAgentStore creates an AgentStore backed by the given database.
func NewAgentStore(db *sql.DB) *AgentStore {
	return &AgentStore{db: db}
}

// -- Agents --

const agentColumns = `id, name, keepalive, updated_at, status, hostname, ip_addresses, os, created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	if err := row.Scan(
		&a.ID, &a.Name, &a.Keepalive, &a.UpdatedAt, &a.Status,
		&a.Hostname, &a.IPAddresses, &a.OS, &a.CreatedBy, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// CreateAgent inserts an agent, applying defaults to zero fields, and sets
// its ID.
func (s *AgentStore) CreateAgent(ctx context.Context, a *models.Agent) error {
	now := time.Now().UTC()
	if a.Keepalive <= 0 {
		a.Keepalive = models.DefaultAgentKeepalive
	}
	if a.Status == "" {
		a.Status = models.AgentStatusActive
	}
	if a.IPAddresses == "" {
		a.IPAddresses = "[]"
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (name, keepalive, updated_at, status, hostname, ip_addresses, os, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Keepalive, a.UpdatedAt.UTC(), a.Status, a.Hostname, a.IPAddresses, a.OS, a.CreatedBy, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert agent id: %w", err)
	}
	return nil
}

// GetAgent returns an agent by ID. Returns nil, nil if not found.
func (s *AgentStore) GetAgent(ctx context.Context, id int64) (*models.Agent, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListActiveAgents returns every agent currently stored as active.
func (s *AgentStore) ListActiveAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE status = ? ORDER BY id`,
		models.AgentStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// MarkInactive flips an active agent to inactive. It reports false when the
// agent was no longer active, so concurrent ticks mark it only once.
func (s *AgentStore) MarkInactive(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET status = ? WHERE id = ? AND status = ?`,
		models.AgentStatusInactive, id, models.AgentStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("mark agent inactive: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkActive flips an inactive agent back to active. It reports whether
// this call made the change, so concurrent reports recover an agent once.
func (s *AgentStore) MarkActive(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET status = ? WHERE id = ? AND status = ?`,
		models.AgentStatusActive, id, models.AgentStatusInactive,
	)
	if err != nil {
		return false, fmt.Errorf("mark agent active: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Heartbeat records a check-in: the agent becomes active with updated_at
// set to at. Non-empty host details replace the stored ones.
func (s *AgentStore) Heartbeat(ctx context.Context, id int64, at time.Time, hostname, ipAddresses, os string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET
			status = ?, updated_at = ?,
			hostname = CASE WHEN ? <> '' THEN ? ELSE hostname END,
			ip_addresses = CASE WHEN ? <> '' THEN ? ELSE ip_addresses END,
			os = CASE WHEN ? <> '' THEN ? ELSE os END
		WHERE id = ?`,
		models.AgentStatusActive, at.UTC(),
		hostname, hostname,
		ipAddresses, ipAddresses,
		os, os,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent %d not found", id)
	}
	return nil
}

// -- Metrics --

// InsertMetric appends a metric sample and sets its ID.
func (s *AgentStore) InsertMetric(ctx context.Context, m *models.AgentMetric) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_metrics (agent_id, timestamp, cpu_usage, memory_usage, disk_usage)
		VALUES (?, ?, ?, ?, ?)`,
		m.AgentID, m.Timestamp.UTC(), m.CPUUsage, m.MemoryUsage, m.DiskUsage,
	)
	if err != nil {
		return fmt.Errorf("insert agent metric: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert agent metric id: %w", err)
	}
	return nil
}

// ListMetrics returns an agent's samples since the given time, newest first.
func (s *AgentStore) ListMetrics(ctx context.Context, agentID int64, since time.Time) ([]models.AgentMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, timestamp, cpu_usage, memory_usage, disk_usage
		FROM agent_metrics
		WHERE agent_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC`,
		agentID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list agent metrics: %w", err)
	}
	defer rows.Close()

	var out []models.AgentMetric
	for rows.Next() {
		var m models.AgentMetric
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Timestamp, &m.CPUUsage, &m.MemoryUsage, &m.DiskUsage); err != nil {
			return nil, fmt.Errorf("scan agent metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PruneMetrics deletes samples older than before and returns how many were
// removed.
func (s *AgentStore) PruneMetrics(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent_metrics WHERE timestamp < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune agent metrics: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
