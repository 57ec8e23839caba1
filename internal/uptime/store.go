package uptime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
)

// UptimeStore provides database access for monitors, their 24h status
// history and the daily rollups.
type UptimeStore struct {
	db *sql.DB
}

// NewUptimeStore creates an UptimeStore backed by the given database.
func NewUptimeStore(db *sql.DB) *UptimeStore {
	return &UptimeStore{db: db}
}

// -- Monitors --

const monitorColumns = `id, name, url, method, headers, body, interval, timeout,
	expected_status, active, status, response_time, last_checked, created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitor(row rowScanner) (*models.Monitor, error) {
	var m models.Monitor
	var active int
	var lastChecked sql.NullTime
	err := row.Scan(
		&m.ID, &m.Name, &m.URL, &m.Method, &m.Headers, &m.Body, &m.Interval, &m.Timeout,
		&m.ExpectedStatus, &active, &m.Status, &m.ResponseTime, &lastChecked, &m.CreatedBy, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Active = active != 0
	if lastChecked.Valid {
		t := lastChecked.Time.UTC()
		m.LastChecked = &t
	}
	return &m, nil
}

// CreateMonitor inserts a monitor, applying defaults to zero fields, and
// sets its ID.
func (s *UptimeStore) CreateMonitor(ctx context.Context, m *models.Monitor) error {
	if m.Method == "" {
		m.Method = "GET"
	}
	if m.Interval <= 0 {
		m.Interval = models.DefaultMonitorInterval
	}
	if m.Timeout <= 0 {
		m.Timeout = models.DefaultMonitorTimeout
	}
	if m.ExpectedStatus == 0 {
		m.ExpectedStatus = models.DefaultMonitorExpectedStatus
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var lastChecked any
	if m.LastChecked != nil {
		lastChecked = m.LastChecked.UTC()
	}
	active := 0
	if m.Active {
		active = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO monitors (
			name, url, method, headers, body, interval, timeout, expected_status,
			active, status, response_time, last_checked, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.URL, m.Method, m.Headers, m.Body, m.Interval, m.Timeout, m.ExpectedStatus,
		active, m.Status, m.ResponseTime, lastChecked, m.CreatedBy, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert monitor: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert monitor id: %w", err)
	}
	return nil
}

// GetMonitor returns a monitor owned by userID. Returns nil, nil if not found.
func (s *UptimeStore) GetMonitor(ctx context.Context, userID, id int64) (*models.Monitor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE id = ? AND created_by = ?`,
		id, userID,
	)
	m, err := scanMonitor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get monitor: %w", err)
	}
	return m, nil
}

// ListActiveMonitors returns every active monitor across all users.
func (s *UptimeStore) ListActiveMonitors(ctx context.Context) ([]models.Monitor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active monitors: %w", err)
	}
	defer rows.Close()

	var out []models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpdateMonitorStatus records the outcome of the latest probe on the
// monitor row.
func (s *UptimeStore) UpdateMonitorStatus(ctx context.Context, id int64, status string, responseTime int64, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE monitors SET status = ?, response_time = ?, last_checked = ? WHERE id = ?`,
		status, responseTime, checkedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update monitor status: %w", err)
	}
	return nil
}

// -- Status history --

// InsertCheck appends a status history row.
func (s *UptimeStore) InsertCheck(ctx context.Context, c *models.MonitorCheck) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_status_history (monitor_id, status, response_time, status_code, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.MonitorID, c.Status, c.ResponseTime, c.StatusCode, c.Error, c.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert status history id: %w", err)
	}
	return nil
}

// ListChecks returns a monitor's history rows since the given time, newest
// first.
func (s *UptimeStore) ListChecks(ctx context.Context, monitorID int64, since time.Time) ([]models.MonitorCheck, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, monitor_id, status, response_time, status_code, error, timestamp
		FROM monitor_status_history
		WHERE monitor_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC`,
		monitorID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var out []models.MonitorCheck
	for rows.Next() {
		var c models.MonitorCheck
		var errText sql.NullString
		if err := rows.Scan(&c.ID, &c.MonitorID, &c.Status, &c.ResponseTime, &c.StatusCode, &errText, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		c.Error = errText.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// -- Daily rollup --

// RollupDay aggregates every history row in [from, to) per monitor into
// monitor_daily_stats under date, then deletes the aggregated rows. It
// runs in one transaction and returns the rows it wrote.
func (s *UptimeStore) RollupDay(ctx context.Context, date string, from, to time.Time) ([]models.MonitorDailyStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rollup: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rows, err := tx.QueryContext(ctx, `
		SELECT monitor_id,
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'down' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN response_time > 0 THEN response_time END), 0),
			COALESCE(MIN(CASE WHEN response_time > 0 THEN response_time END), 0),
			COALESCE(MAX(CASE WHEN response_time > 0 THEN response_time END), 0)
		FROM monitor_status_history
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY monitor_id
		ORDER BY monitor_id`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate status history: %w", err)
	}
	var stats []models.MonitorDailyStats
	for rows.Next() {
		st := models.MonitorDailyStats{Date: date}
		if err := rows.Scan(&st.MonitorID, &st.TotalChecks, &st.UpChecks, &st.DownChecks,
			&st.AvgResponseTime, &st.MinResponseTime, &st.MaxResponseTime); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		if st.TotalChecks > 0 {
			st.Availability = math.Round(float64(st.UpChecks)/float64(st.TotalChecks)*10000) / 100
		}
		stats = append(stats, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate: %w", err)
	}

	for i := range stats {
		st := &stats[i]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO monitor_daily_stats (
				monitor_id, date, total_checks, up_checks, down_checks,
				avg_response_time, min_response_time, max_response_time, availability, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.MonitorID, st.Date, st.TotalChecks, st.UpChecks, st.DownChecks,
			st.AvgResponseTime, st.MinResponseTime, st.MaxResponseTime, st.Availability, time.Now().UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert daily stats: %w", err)
		}
		if st.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert daily stats id: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM monitor_status_history WHERE timestamp >= ? AND timestamp < ?`,
		from.UTC(), to.UTC(),
	); err != nil {
		return nil, fmt.Errorf("delete rolled up history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rollup: %w", err)
	}
	return stats, nil
}

// ListDailyStats returns a monitor's daily rollups, newest first.
func (s *UptimeStore) ListDailyStats(ctx context.Context, monitorID int64) ([]models.MonitorDailyStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, monitor_id, date, total_checks, up_checks, down_checks,
			avg_response_time, min_response_time, max_response_time, availability
		FROM monitor_daily_stats
		WHERE monitor_id = ?
		ORDER BY date DESC`,
		monitorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	defer rows.Close()

	var out []models.MonitorDailyStats
	for rows.Next() {
		var st models.MonitorDailyStats
		if err := rows.Scan(&st.ID, &st.MonitorID, &st.Date, &st.TotalChecks, &st.UpChecks, &st.DownChecks,
			&st.AvgResponseTime, &st.MinResponseTime, &st.MaxResponseTime, &st.Availability); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
