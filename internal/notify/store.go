package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
)

// NotifyStore provides database access for settings, channels, templates
// and delivery history. Every query is scoped to an owning user.
type NotifyStore struct {
	db *sql.DB
}

// NewNotifyStore creates a NotifyStore backed by the given database.
func NewNotifyStore(db *sql.DB) *NotifyStore {
	return &NotifyStore{db: db}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// -- Settings --

const settingsColumns = `id, user_id, target_type, target_id, enabled,
	on_down, on_recovery, on_offline,
	on_cpu_threshold, on_memory_threshold, on_disk_threshold,
	cpu_threshold, memory_threshold, disk_threshold, channels`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (*models.NotificationSettings, error) {
	var s models.NotificationSettings
	var enabled, onDown, onRecovery, onOffline, onCPU, onMem, onDisk int
	err := row.Scan(
		&s.ID, &s.UserID, &s.TargetType, &s.TargetID, &enabled,
		&onDown, &onRecovery, &onOffline,
		&onCPU, &onMem, &onDisk,
		&s.CPUThreshold, &s.MemoryThreshold, &s.DiskThreshold, &s.Channels,
	)
	if err != nil {
		return nil, err
	}
	s.Enabled = enabled != 0
	s.OnDown = onDown != 0
	s.OnRecovery = onRecovery != 0
	s.OnOffline = onOffline != 0
	s.OnCPUThreshold = onCPU != 0
	s.OnMemoryThreshold = onMem != 0
	s.OnDiskThreshold = onDisk != 0
	return &s, nil
}

// ListSettings returns the rows for one specific target in insertion order.
func (s *NotifyStore) ListSettings(ctx context.Context, userID int64, targetType string, targetID int64) ([]models.NotificationSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+settingsColumns+`
		FROM notification_settings
		WHERE user_id = ? AND target_type = ? AND target_id = ?
		ORDER BY id`,
		userID, targetType, targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationSettings
	for rows.Next() {
		st, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// GetGlobalSettings returns the first global row of a target family
// ("global-monitor" or "global-agent"). Returns nil, nil if not found.
func (s *NotifyStore) GetGlobalSettings(ctx context.Context, userID int64, globalType string) (*models.NotificationSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+settingsColumns+`
		FROM notification_settings
		WHERE user_id = ? AND target_type = ?
		ORDER BY id LIMIT 1`,
		userID, globalType,
	)
	st, err := scanSettings(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get global settings: %w", err)
	}
	return st, nil
}

// CreateSettings inserts a settings row and sets its ID.
func (s *NotifyStore) CreateSettings(ctx context.Context, st *models.NotificationSettings) error {
	if st.Channels == "" {
		st.Channels = "[]"
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_settings (
			user_id, target_type, target_id, enabled,
			on_down, on_recovery, on_offline,
			on_cpu_threshold, on_memory_threshold, on_disk_threshold,
			cpu_threshold, memory_threshold, disk_threshold, channels,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.UserID, st.TargetType, st.TargetID, boolToInt(st.Enabled),
		boolToInt(st.OnDown), boolToInt(st.OnRecovery), boolToInt(st.OnOffline),
		boolToInt(st.OnCPUThreshold), boolToInt(st.OnMemoryThreshold), boolToInt(st.OnDiskThreshold),
		st.CPUThreshold, st.MemoryThreshold, st.DiskThreshold, st.Channels,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	st.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert settings id: %w", err)
	}
	return nil
}

// CountSettings returns how many rows a user has for a target type.
func (s *NotifyStore) CountSettings(ctx context.Context, userID int64, targetType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_settings WHERE user_id = ? AND target_type = ?`,
		userID, targetType,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count settings: %w", err)
	}
	return n, nil
}

// -- Templates --

// GetDefaultTemplate returns the user's default template of a type, falling
// back to the lowest-id template of that type. Returns nil, nil if the user
// has none.
func (s *NotifyStore) GetDefaultTemplate(ctx context.Context, userID int64, typ string) (*models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	var isDefault int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, subject, content, is_default, created_by, created_at
		FROM notification_templates
		WHERE created_by = ? AND type = ?
		ORDER BY is_default DESC, id ASC
		LIMIT 1`,
		userID, typ,
	).Scan(&t.ID, &t.Name, &t.Type, &t.Subject, &t.Content, &isDefault, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get default template: %w", err)
	}
	t.IsDefault = isDefault != 0
	return &t, nil
}

// CreateTemplate inserts a template and sets its ID.
func (s *NotifyStore) CreateTemplate(ctx context.Context, t *models.NotificationTemplate) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_templates (name, type, subject, content, is_default, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Type, t.Subject, t.Content, boolToInt(t.IsDefault), t.CreatedBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert template id: %w", err)
	}
	return nil
}

// CountTemplates returns how many templates of a type a user owns.
func (s *NotifyStore) CountTemplates(ctx context.Context, userID int64, typ string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_templates WHERE created_by = ? AND type = ?`,
		userID, typ,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return n, nil
}

// -- Channels --

// GetChannels resolves channel ids owned by userID. Unknown or foreign ids
// are dropped; the result follows the order of ids.
func (s *NotifyStore) GetChannels(ctx context.Context, userID int64, ids []int64) ([]models.NotificationChannel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, config, enabled, created_by, created_at
		FROM notification_channels
		WHERE created_by = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get channels: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]models.NotificationChannel, len(ids))
	for rows.Next() {
		var c models.NotificationChannel
		var enabled int
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Config, &enabled, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.Enabled = enabled != 0
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	out := make([]models.NotificationChannel, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			delete(byID, id)
		}
	}
	return out, nil
}

// CreateChannel inserts a channel and sets its ID.
func (s *NotifyStore) CreateChannel(ctx context.Context, c *models.NotificationChannel) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Config == "" {
		c.Config = "{}"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_channels (name, type, config, enabled, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Type, c.Config, boolToInt(c.Enabled), c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert channel id: %w", err)
	}
	return nil
}

// -- History --

// HistoryFilter narrows ListHistory. Zero values match everything.
type HistoryFilter struct {
	UserID   int64
	Type     string
	TargetID int64
	Status   string
	Limit    int
	Offset   int
}

// InsertHistory appends one delivery attempt.
func (s *NotifyStore) InsertHistory(ctx context.Context, h *models.NotificationHistory) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_history (
			dispatch_id, user_id, type, target_id, channel_id, template_id,
			status, content, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.DispatchID, h.UserID, h.Type, h.TargetID, h.ChannelID, h.TemplateID,
		h.Status, h.Content, h.Error, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	h.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert history id: %w", err)
	}
	return nil
}

// ListHistory returns a page of history rows, newest first, and the total
// number of rows matching the filter.
func (s *NotifyStore) ListHistory(ctx context.Context, f HistoryFilter) ([]models.NotificationHistory, int, error) {
	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.TargetID > 0 {
		where = append(where, "target_id = ?")
		args = append(args, f.TargetID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_history WHERE `+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	pageArgs := append(append([]any{}, args...), limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dispatch_id, user_id, type, target_id, channel_id, template_id,
			status, content, error, created_at
		FROM notification_history
		WHERE `+clause+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationHistory
	for rows.Next() {
		var h models.NotificationHistory
		var errText sql.NullString
		if err := rows.Scan(
			&h.ID, &h.DispatchID, &h.UserID, &h.Type, &h.TargetID, &h.ChannelID, &h.TemplateID,
			&h.Status, &h.Content, &errText, &h.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		h.Error = errText.String
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history: %w", err)
	}
	return out, total, nil
}
