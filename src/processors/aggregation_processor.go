// backend/src/processors/aggregation_processor.go
package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/utils"
)

// AggregateResult is the rolled-up view of one batch of closed items.
type AggregateResult struct {
	Today models.WindowStats
	Month models.WindowStats
	YTD   models.WindowStats

	ShortTermPnL decimal.Decimal
	LongTermPnL  decimal.Decimal
	TotalPnL     decimal.Decimal

	Positions []models.ClosedPosition
	Series    []models.SeriesPoint
}

// AggregationProcessor folds closed option groups and stock matches into
// the fixed reporting windows plus a cumulative series. It is a pure
// function of the closed-event set: recomputation carries no state between
// runs, which keeps a forced refresh idempotent.
type AggregationProcessor struct{}

func NewAggregationProcessor() *AggregationProcessor { return &AggregationProcessor{} }

// Process derives the closed-position list from groups and matches and
// aggregates it as of asOf. Assigned groups are excluded: their economics
// live in the stock lots they produced. Open groups are excluded because
// their P&L is undefined.
func (p *AggregationProcessor) Process(groups []models.OptionGroup, matches []models.ClosedMatch, asOf time.Time) AggregateResult {
	var positions []models.ClosedPosition

	for _, g := range groups {
		if g.Status == models.StatusOpen || g.Status == models.StatusAssigned {
			continue
		}
		positions = append(positions, models.ClosedPosition{
			Symbol:   g.Key.String(),
			Kind:     models.PositionOption,
			Status:   g.Status,
			Quantity: soldQuantity(g),
			OpenedAt: g.OpenedAt,
			ClosedAt: g.ClosedAt,
			PnL:      g.RealizedPnL(),
			Term:     models.ClassifyTerm(g.OpenedAt, g.ClosedAt),
		})
	}
	for _, m := range matches {
		positions = append(positions, models.ClosedPosition{
			Symbol:   m.Symbol,
			Kind:     models.PositionStock,
			Status:   models.StatusClosed,
			Quantity: m.Quantity,
			OpenedAt: m.OpenedAt,
			ClosedAt: m.ClosedAt,
			PnL:      m.PnL,
			Term:     m.Term,
		})
	}

	sort.SliceStable(positions, func(i, j int) bool {
		if !positions[i].ClosedAt.Equal(positions[j].ClosedAt) {
			return positions[i].ClosedAt.Before(positions[j].ClosedAt)
		}
		return positions[i].Symbol < positions[j].Symbol
	})

	result := AggregateResult{Positions: positions}

	running := decimal.Zero
	for _, pos := range positions {
		running = running.Add(pos.PnL)
		result.Series = append(result.Series, models.SeriesPoint{
			Timestamp: pos.ClosedAt,
			Total:     running,
		})

		result.TotalPnL = result.TotalPnL.Add(pos.PnL)
		if pos.Term == models.LongTerm {
			result.LongTermPnL = result.LongTermPnL.Add(pos.PnL)
		} else {
			result.ShortTermPnL = result.ShortTermPnL.Add(pos.PnL)
		}

		if sameDay(pos.ClosedAt, asOf) {
			addToWindow(&result.Today, pos.PnL)
		}
		if sameMonth(pos.ClosedAt, asOf) {
			addToWindow(&result.Month, pos.PnL)
		}
		if pos.ClosedAt.Year() == asOf.Year() {
			addToWindow(&result.YTD, pos.PnL)
		}
	}

	finalizeWindow(&result.Today)
	finalizeWindow(&result.Month)
	finalizeWindow(&result.YTD)
	return result
}

// soldQuantity is the display quantity of an option position: the number of
// contracts sold (for expired short premium) or traded round-trip.
func soldQuantity(g models.OptionGroup) int64 {
	var sold int64
	for _, e := range g.Executions {
		if e.Side == models.SideSell {
			sold += e.Quantity
		}
	}
	if sold == 0 {
		for _, e := range g.Executions {
			sold += e.Quantity
		}
	}
	return sold
}

func addToWindow(w *models.WindowStats, pnl decimal.Decimal) {
	w.TotalPnL = w.TotalPnL.Add(pnl)
	w.TradeCount++
	if pnl.IsPositive() {
		w.Wins++
	} else if pnl.IsNegative() {
		w.Losses++
	}
}

// finalizeWindow computes the win rate. Zero decided trades yields an
// undefined (nil) rate, not zero.
func finalizeWindow(w *models.WindowStats) {
	decided := w.Wins + w.Losses
	if decided == 0 {
		w.WinRate = nil
		return
	}
	rate := utils.RoundFloat(float64(w.Wins)/float64(decided), 4)
	w.WinRate = &rate
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}
