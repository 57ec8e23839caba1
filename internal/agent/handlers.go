package agent

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	_ "github.com/HerbHall/beacon/pkg/models" // swagger type reference
	"github.com/HerbHall/beacon/pkg/plugin"
	"go.uber.org/zap"
)

// maxReportBytes bounds a report request body.
const maxReportBytes = 64 << 10

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/tick", Handler: m.handleTick},
		{Method: "POST", Path: "/prune", Handler: m.handlePrune},
		{Method: "POST", Path: "/agents/{id}/report", Handler: m.handleReport},
	}
}

// handleTick runs one agent staleness tick synchronously.
//
//	@Summary		Run agent tick
//	@Description	Marks agents without a recent heartbeat offline.
//	@Tags			agent
//	@Produce		json
//	@Success		200 {object} TickSummary
//	@Router			/agent/tick [post]
func (m *Module) handleTick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.RunTick(r.Context()))
}

// handlePrune deletes metric samples past retention.
//
//	@Summary		Prune agent metrics
//	@Tags			agent
//	@Produce		json
//	@Success		200 {object} PruneSummary
//	@Failure		503 {object} models.APIProblem
//	@Router			/agent/prune [post]
func (m *Module) handlePrune(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "agent store not available")
		return
	}
	sum, err := m.PruneMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "prune failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleReport ingests a heartbeat with optional resource metrics.
//
//	@Summary		Agent report
//	@Description	Records a heartbeat, brings an offline agent back online and checks metric thresholds.
//	@Tags			agent
//	@Accept			json
//	@Produce		json
//	@Param			id path int true "Agent ID"
//	@Param			report body Report true "Heartbeat and metrics"
//	@Success		200 {object} ReportResult
//	@Failure		400 {object} models.APIProblem
//	@Failure		404 {object} models.APIProblem
//	@Router			/agent/agents/{id}/report [post]
func (m *Module) handleReport(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "agent store not available")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var rep Report
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBytes)).Decode(&rep); err != nil {
			writeError(w, http.StatusBadRequest, "invalid report body")
			return
		}
	}

	res, err := m.Ingest(r.Context(), id, rep)
	if errors.Is(err, ErrAgentNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		m.logger.Warn("failed to ingest agent report", zap.Int64("agent_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to ingest report")
		return
	}
	writeJSON(w, http.StatusOK, res)
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
