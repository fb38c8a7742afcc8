// backend/src/handlers/refresh_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
)

type RefreshHandler struct {
	syncService services.SyncService
}

func NewRefreshHandler(syncService services.SyncService) *RefreshHandler {
	return &RefreshHandler{syncService: syncService}
}

// HandleUpdate forces a broker sync plus recompute. If a recompute is
// already in flight the request is acknowledged without starting another.
func (h *RefreshHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	result, err := h.syncService.Sync(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrRecomputeInFlight) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"status": "refresh already in progress"})
			return
		}
		if errors.Is(err, services.ErrNoBrokerConfigured) {
			utils.SendJSONError(w, "no broker API token configured", http.StatusServiceUnavailable)
			return
		}
		ctxLogger.Error("Forced refresh failed", "error", err)
		utils.SendJSONError(w, "refresh failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		ctxLogger.Error("Error encoding refresh response", "error", err)
	}
}

// HandleReset clears all persisted broker data. The next sync starts from a
// clean slate.
func (h *RefreshHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.syncService.Reset(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("Reset failed", "error", err)
		utils.SendJSONError(w, "reset failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "all persisted data cleared"})
}
