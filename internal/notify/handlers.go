package notify

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/HerbHall/beacon/pkg/models"
	"github.com/HerbHall/beacon/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/history", Handler: m.handleListHistory},
		{Method: "POST", Path: "/users/{user_id}/defaults", Handler: m.handleSeedDefaults},
	}
}

// historyPage is the response body of the history listing.
type historyPage struct {
	Items  []models.NotificationHistory `json:"items"`
	Total  int                          `json:"total"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

// handleListHistory returns a page of notification delivery history.
//
//	@Summary		List notification history
//	@Description	Returns delivery attempts for a user, newest first.
//	@Tags			notify
//	@Produce		json
//	@Param			user_id query int true "Owner user ID"
//	@Param			type query string false "monitor, agent or system"
//	@Param			target_id query int false "Target ID"
//	@Param			status query string false "success or failed"
//	@Param			limit query int false "Page size (default 50, max 500)"
//	@Param			offset query int false "Page offset"
//	@Success		200 {object} historyPage
//	@Failure		400 {object} models.APIProblem
//	@Failure		500 {object} models.APIProblem
//	@Router			/notify/history [get]
func (m *Module) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "notify store not available")
		return
	}
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	f := HistoryFilter{
		UserID: userID,
		Type:   q.Get("type"),
		Status: q.Get("status"),
		Limit:  parseIntParam(q.Get("limit"), 50),
		Offset: parseIntParam(q.Get("offset"), 0),
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if s := q.Get("target_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target_id")
			return
		}
		f.TargetID = id
	}
	if f.Status != "" && f.Status != models.DeliverySuccess && f.Status != models.DeliveryFailed {
		writeError(w, http.StatusBadRequest, "status must be success or failed")
		return
	}

	items, total, err := m.store.ListHistory(r.Context(), f)
	if err != nil {
		m.logger.Warn("failed to list notification history", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if items == nil {
		items = []models.NotificationHistory{}
	}
	writeJSON(w, http.StatusOK, historyPage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// handleSeedDefaults creates the default templates and global settings for a user.
//
//	@Summary		Seed notification defaults
//	@Description	Creates default templates and disabled global settings. Safe to repeat.
//	@Tags			notify
//	@Produce		json
//	@Param			user_id path int true "User ID"
//	@Success		200 {object} SeedResult
//	@Failure		400 {object} models.APIProblem
//	@Failure		500 {object} models.APIProblem
//	@Router			/notify/users/{user_id}/defaults [post]
func (m *Module) handleSeedDefaults(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "notify store not available")
		return
	}
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	res, err := SeedDefaults(r.Context(), m.store, userID)
	if err != nil {
		m.logger.Warn("failed to seed notification defaults", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to seed defaults")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseIntParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://beacon.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
