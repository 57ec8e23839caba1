package uptime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/beacon/pkg/models"
	"github.com/HerbHall/beacon/pkg/plugin"
	"go.uber.org/zap"
)

// historyWindow is how far back the status history listing reaches.
const historyWindow = 24 * time.Hour

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/tick", Handler: m.handleTick},
		{Method: "POST", Path: "/rollup", Handler: m.handleRollup},
		{Method: "POST", Path: "/monitors/{id}/check", Handler: m.handleCheck},
		{Method: "GET", Path: "/monitors/{id}/history", Handler: m.handleHistory},
	}
}

// handleTick runs one monitor tick synchronously.
//
//	@Summary		Run monitor tick
//	@Description	Probes every due monitor and evaluates notifications.
//	@Tags			uptime
//	@Produce		json
//	@Success		200 {object} TickSummary
//	@Router			/uptime/tick [post]
func (m *Module) handleTick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.RunTick(r.Context()))
}

// handleRollup folds yesterday's status history into daily stats.
//
//	@Summary		Run daily rollup
//	@Tags			uptime
//	@Produce		json
//	@Success		200 {object} RollupSummary
//	@Failure		500 {object} models.APIProblem
//	@Failure		503 {object} models.APIProblem
//	@Router			/uptime/rollup [post]
func (m *Module) handleRollup(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "uptime store not available")
		return
	}
	sum, err := m.RunDailyRollup(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rollup failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleCheck re-probes one monitor on demand.
//
//	@Summary		Check monitor now
//	@Description	Probes the monitor and notifies if its status changed.
//	@Tags			uptime
//	@Produce		json
//	@Param			id path int true "Monitor ID"
//	@Param			user_id query int true "Owner user ID"
//	@Success		200 {object} ManualCheck
//	@Failure		400 {object} models.APIProblem
//	@Failure		404 {object} models.APIProblem
//	@Router			/uptime/monitors/{id}/check [post]
func (m *Module) handleCheck(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "uptime store not available")
		return
	}
	id, userID, ok := monitorParams(w, r)
	if !ok {
		return
	}
	res, err := m.CheckNow(r.Context(), userID, id)
	if errors.Is(err, ErrMonitorNotFound) {
		writeError(w, http.StatusNotFound, "monitor not found")
		return
	}
	if err != nil {
		m.logger.Warn("manual check failed", zap.Int64("monitor_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "check failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHistory returns the last 24 hours of probe results.
//
//	@Summary		Monitor status history
//	@Tags			uptime
//	@Produce		json
//	@Param			id path int true "Monitor ID"
//	@Param			user_id query int true "Owner user ID"
//	@Success		200 {array} models.MonitorCheck
//	@Failure		400 {object} models.APIProblem
//	@Failure		404 {object} models.APIProblem
//	@Router			/uptime/monitors/{id}/history [get]
func (m *Module) handleHistory(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "uptime store not available")
		return
	}
	id, userID, ok := monitorParams(w, r)
	if !ok {
		return
	}
	mon, err := m.store.GetMonitor(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load monitor")
		return
	}
	if mon == nil {
		writeError(w, http.StatusNotFound, "monitor not found")
		return
	}
	checks, err := m.store.ListChecks(r.Context(), id, time.Now().UTC().Add(-historyWindow))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if checks == nil {
		checks = []models.MonitorCheck{}
	}
	writeJSON(w, http.StatusOK, checks)
}

func monitorParams(w http.ResponseWriter, r *http.Request) (id, userID int64, ok bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid monitor id")
		return 0, 0, false
	}
	userID, err = strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return 0, 0, false
	}
	return id, userID, true
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
