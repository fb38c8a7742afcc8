// backend/src/handlers/stats_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
)

type StatsHandler struct {
	reportService services.ReportService
}

func NewStatsHandler(reportService services.ReportService) *StatsHandler {
	return &StatsHandler{reportService: reportService}
}

// HandleGetStats returns the full published report snapshot: window P&L,
// term split, closed positions, open state and data-quality counters.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.reportService.Current()
	if err != nil {
		if errors.Is(err, services.ErrSnapshotNotReady) {
			utils.SendJSONError(w, "report not computed yet, trigger /api/update first", http.StatusServiceUnavailable)
			return
		}
		utils.SendJSONError(w, "failed to load report snapshot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		logger.FromContext(r.Context()).Error("Error encoding stats response", "error", err)
	}
}

// HandleGetChart returns only the cumulative realized P&L series.
func (h *StatsHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.reportService.Current()
	if err != nil {
		if errors.Is(err, services.ErrSnapshotNotReady) {
			utils.SendJSONError(w, "report not computed yet, trigger /api/update first", http.StatusServiceUnavailable)
			return
		}
		utils.SendJSONError(w, "failed to load report snapshot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot.Series); err != nil {
		logger.FromContext(r.Context()).Error("Error encoding chart response", "error", err)
	}
}

// HandleHealth is the liveness probe.
func (h *StatsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if snapshot, err := h.reportService.Current(); err == nil {
		status["last_computed"] = snapshot.GeneratedAt
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
