// backend/src/processors/stock_processor.go
package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
)

// StockMatchResult is the output of FIFO lot matching for one batch.
type StockMatchResult struct {
	Matches []models.ClosedMatch
	// OpenLots holds the remaining (unsold) purchase lots per symbol.
	OpenLots map[string][]models.StockLot
	// UnknownBasis records sells that exhausted the lot queue: the buy
	// history predates the ingested window, so the remainder is surfaced
	// instead of fabricating a basis.
	UnknownBasis []models.UnknownBasis
}

// StockProcessor maintains one FIFO queue of purchase lots per symbol and
// matches each sell against the oldest open lots.
type StockProcessor struct{}

func NewStockProcessor() *StockProcessor { return &StockProcessor{} }

// lotEvent merges purchase-lot creation (buys and synthetic assignment
// lots) with sells into one time-ordered stream per batch.
type lotEvent struct {
	at   int64 // unix nanos
	seq  int
	lot  *models.StockLot
	sell *models.Execution
}

// Process runs FIFO matching over the stock executions and synthetic lots.
// Lots are consumed strictly oldest-open-timestamp-first, ties broken by
// ingestion order; a sell splits across lots but never across symbols.
func (p *StockProcessor) Process(
	execs []models.Execution,
	syntheticLots []models.StockLot,
	excluded map[string]bool,
) StockMatchResult {
	var events []lotEvent

	for i := range execs {
		e := &execs[i]
		if e.Kind != models.KindStock || excluded[e.TradeID] {
			continue
		}
		switch e.Side {
		case models.SideBuy:
			events = append(events, lotEvent{
				at:  e.ExecutedAt.UnixNano(),
				seq: e.Seq,
				lot: &models.StockLot{
					Symbol:           e.Underlying,
					OriginalQuantity: e.Quantity,
					Remaining:        e.Quantity,
					CostBasis:        e.Price,
					FeePerShare:      perShare(e.Fee, e.Quantity),
					OpenedAt:         e.ExecutedAt,
					Provenance:       models.LotPurchased,
					Seq:              e.Seq,
				},
			})
		case models.SideSell:
			events = append(events, lotEvent{at: e.ExecutedAt.UnixNano(), seq: e.Seq, sell: e})
		}
	}
	for i := range syntheticLots {
		lot := syntheticLots[i]
		events = append(events, lotEvent{at: lot.OpenedAt.UnixNano(), seq: lot.Seq, lot: &lot})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].seq < events[j].seq
	})

	result := StockMatchResult{OpenLots: make(map[string][]models.StockLot)}
	queues := make(map[string][]*models.StockLot)

	for _, ev := range events {
		if ev.lot != nil {
			queues[ev.lot.Symbol] = append(queues[ev.lot.Symbol], ev.lot)
			continue
		}
		p.matchSell(ev.sell, queues, &result)
	}

	// Deterministic open-lot listing for the snapshot.
	for symbol, queue := range queues {
		for _, lot := range queue {
			if lot.Remaining > 0 {
				result.OpenLots[symbol] = append(result.OpenLots[symbol], *lot)
			}
		}
	}
	sort.Slice(result.UnknownBasis, func(i, j int) bool {
		if !result.UnknownBasis[i].ClosedAt.Equal(result.UnknownBasis[j].ClosedAt) {
			return result.UnknownBasis[i].ClosedAt.Before(result.UnknownBasis[j].ClosedAt)
		}
		return result.UnknownBasis[i].Symbol < result.UnknownBasis[j].Symbol
	})

	return result
}

// matchSell consumes min(remaining, lot.Remaining) from the oldest open lot
// until the sell quantity is exhausted, emitting one ClosedMatch per
// consumed slice. Sell fees are charged proportionally to each slice.
func (p *StockProcessor) matchSell(sell *models.Execution, queues map[string][]*models.StockLot, result *StockMatchResult) {
	remaining := sell.Quantity
	sellFeePerShare := perShare(sell.Fee, sell.Quantity)
	queue := queues[sell.Underlying]

	for remaining > 0 && len(queue) > 0 {
		lot := queue[0]
		if lot.Remaining == 0 {
			queue = queue[1:]
			continue
		}

		take := lot.Remaining
		if remaining < take {
			take = remaining
		}
		takeDec := decimal.NewFromInt(take)

		pnl := sell.Price.Sub(lot.CostBasis).Mul(takeDec).
			Sub(lot.FeePerShare.Mul(takeDec)).
			Sub(sellFeePerShare.Mul(takeDec))

		result.Matches = append(result.Matches, models.ClosedMatch{
			Symbol:    sell.Underlying,
			Quantity:  take,
			BuyPrice:  lot.CostBasis,
			SellPrice: sell.Price,
			OpenedAt:  lot.OpenedAt,
			ClosedAt:  sell.ExecutedAt,
			PnL:       pnl,
			Term:      models.ClassifyTerm(lot.OpenedAt, sell.ExecutedAt),
		})

		lot.Remaining -= take
		remaining -= take
		if lot.Remaining == 0 {
			queue = queue[1:]
		}
	}
	queues[sell.Underlying] = queue

	if remaining > 0 {
		logger.L.Warn("Sell exhausted the lot queue; surfacing unknown-basis remainder",
			"symbol", sell.Underlying, "unmatched", remaining, "tradeID", sell.TradeID)
		remDec := decimal.NewFromInt(remaining)
		result.UnknownBasis = append(result.UnknownBasis, models.UnknownBasis{
			Symbol:    sell.Underlying,
			Quantity:  remaining,
			Proceeds:  sell.Price.Mul(remDec).Sub(sellFeePerShare.Mul(remDec)),
			ClosedAt:  sell.ExecutedAt,
			SellTrade: sell.TradeID,
		})
	}
}

func perShare(fee decimal.Decimal, quantity int64) decimal.Decimal {
	if quantity == 0 || fee.IsZero() {
		return decimal.Zero
	}
	return fee.Div(decimal.NewFromInt(quantity))
}
