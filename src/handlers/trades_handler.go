// backend/src/handlers/trades_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/tradefolio/backend/src/database"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
)

type TradesHandler struct {
	reportService services.ReportService
}

func NewTradesHandler(reportService services.ReportService) *TradesHandler {
	return &TradesHandler{reportService: reportService}
}

// HandleGetTrades returns closed positions, optionally filtered with
// ?days=N counting back from the snapshot time.
func (h *TradesHandler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	days := 0
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 0 {
			utils.SendJSONError(w, fmt.Sprintf("invalid days parameter %q", daysStr), http.StatusBadRequest)
			return
		}
		days = parsed
	}

	positions, err := h.reportService.ClosedPositions(days)
	if err != nil {
		if errors.Is(err, services.ErrSnapshotNotReady) {
			utils.SendJSONError(w, "report not computed yet, trigger /api/update first", http.StatusServiceUnavailable)
			return
		}
		utils.SendJSONError(w, "failed to load closed positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []models.ClosedPosition{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(positions); err != nil {
		logger.FromContext(r.Context()).Error("Error encoding trades response", "error", err)
	}
}

// HandleGetUnknownBasis returns sells that exhausted the purchase history.
// These need a longer ingestion window or a manual basis entry.
func (h *TradesHandler) HandleGetUnknownBasis(w http.ResponseWriter, r *http.Request) {
	sales, err := h.reportService.UnknownBasisSales()
	if err != nil {
		if errors.Is(err, services.ErrSnapshotNotReady) {
			utils.SendJSONError(w, "report not computed yet, trigger /api/update first", http.StatusServiceUnavailable)
			return
		}
		utils.SendJSONError(w, "failed to load unknown-basis sales", http.StatusInternalServerError)
		return
	}
	if sales == nil {
		sales = []models.UnknownBasis{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sales); err != nil {
		logger.FromContext(r.Context()).Error("Error encoding unknown-basis response", "error", err)
	}
}

// HandleGetRawTrades returns the persisted broker records as stored, newest
// first. Useful when a reported figure needs tracing back to its source.
func (h *TradesHandler) HandleGetRawTrades(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`
		SELECT trade_id, tx_type, tx_subtype, description, symbol, quantity,
		       net_amount, executed_at, source
		FROM raw_trades
		ORDER BY executed_at DESC, id DESC`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("error querying raw trades: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	trades := []models.RawTrade{}
	for rows.Next() {
		var t models.RawTrade
		if scanErr := rows.Scan(
			&t.TradeID, &t.Type, &t.SubType, &t.Description, &t.Symbol,
			&t.Quantity, &t.NetAmount, &t.Timestamp, &t.Source,
		); scanErr != nil {
			utils.SendJSONError(w, fmt.Sprintf("error scanning raw trade: %v", scanErr), http.StatusInternalServerError)
			return
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		utils.SendJSONError(w, fmt.Sprintf("error iterating raw trades: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trades); err != nil {
		logger.FromContext(r.Context()).Error("Error encoding raw trades response", "error", err)
	}
}

// HandleGetHistoryCensus summarizes the persisted records by type and
// subtype, a quick way to see what the broker actually sent.
func (h *TradesHandler) HandleGetHistoryCensus(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`
		SELECT tx_type, tx_subtype, COUNT(*)
		FROM raw_trades
		GROUP BY tx_type, tx_subtype
		ORDER BY tx_type, tx_subtype`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("error querying history census: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	type censusRow struct {
		Type    string `json:"type"`
		SubType string `json:"sub_type"`
		Count   int    `json:"count"`
	}
	census := []censusRow{}
	for rows.Next() {
		var row censusRow
		if scanErr := rows.Scan(&row.Type, &row.SubType, &row.Count); scanErr != nil {
			utils.SendJSONError(w, fmt.Sprintf("error scanning census row: %v", scanErr), http.StatusInternalServerError)
			return
		}
		census = append(census, row)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(census); err != nil {
		logger.FromContext(r.Context()).Error("Error encoding census response", "error", err)
	}
}
