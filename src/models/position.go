// backend/src/models/position.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupStatus is the lifecycle state of an option position group.
type GroupStatus string

const (
	StatusOpen             GroupStatus = "OPEN"
	StatusClosed           GroupStatus = "CLOSED"
	StatusExpiredWorthless GroupStatus = "EXPIRED_WORTHLESS"
	StatusAssigned         GroupStatus = "ASSIGNED"
)

// OptionGroup aggregates every option leg execution on one
// (underlying, expiration) key into a single economic position.
//
// BuyCost is the sum of buy-side notional plus fees, SellProceeds the sum of
// sell-side notional minus fees. NetQuantity counts buys negative and sells
// positive, so it returns to zero when a position is flat. Realized P&L is
// SellProceeds - BuyCost and is meaningful only once the group is no longer
// Open; Assigned groups are excluded from P&L aggregation entirely because
// their economics transfer into the resulting stock lot.
type OptionGroup struct {
	Key          GroupKey        `json:"key"`
	Executions   []Execution     `json:"executions"`
	BuyCost      decimal.Decimal `json:"buy_cost"`
	SellProceeds decimal.Decimal `json:"sell_proceeds"`
	NetQuantity  int64           `json:"net_quantity"`
	Status       GroupStatus     `json:"status"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     time.Time       `json:"closed_at,omitempty"`
}

// RealizedPnL is SellProceeds - BuyCost. Callers must not read it while the
// group is still Open.
func (g OptionGroup) RealizedPnL() decimal.Decimal {
	return g.SellProceeds.Sub(g.BuyCost)
}

// LotProvenance records how a stock lot came to exist.
type LotProvenance string

const (
	LotPurchased          LotProvenance = "PURCHASED"
	LotAssignedFromOption LotProvenance = "ASSIGNED_FROM_OPTION"
)

// StockLot is one open purchase lot in a per-symbol FIFO queue. Remaining
// decreases monotonically as sells consume it and the lot is discarded at
// zero. FeePerShare carries the buy-side fee so matches charge it
// proportionally.
type StockLot struct {
	Symbol           string          `json:"symbol"`
	OriginalQuantity int64           `json:"original_quantity"`
	Remaining        int64           `json:"remaining"`
	CostBasis        decimal.Decimal `json:"cost_basis"` // per share
	FeePerShare      decimal.Decimal `json:"fee_per_share"`
	OpenedAt         time.Time       `json:"opened_at"`
	Provenance       LotProvenance   `json:"provenance"`
	SourceGroup      GroupKey        `json:"source_group,omitempty"` // set for assigned lots
	Seq              int             `json:"-"`                      // ingestion order, FIFO tie-break
}

// TermClassification is the holding-period tax bucket of a closed match.
type TermClassification string

const (
	ShortTerm TermClassification = "SHORT_TERM"
	LongTerm  TermClassification = "LONG_TERM"
)

// longTermHolding is the holding period at which a position becomes
// long-term. Day 365 itself classifies as long-term.
const longTermHolding = 365 * 24 * time.Hour

// ClassifyTerm returns the tax treatment for a lot opened and closed at the
// given times.
func ClassifyTerm(openedAt, closedAt time.Time) TermClassification {
	if closedAt.Sub(openedAt) >= longTermHolding {
		return LongTerm
	}
	return ShortTerm
}

// ClosedMatch is the immutable result of consuming some quantity of one
// StockLot against one sell execution. The sum of match P&L for a symbol is
// the total realized stock P&L for that symbol.
type ClosedMatch struct {
	Symbol    string             `json:"symbol"`
	Quantity  int64              `json:"quantity"`
	BuyPrice  decimal.Decimal    `json:"buy_price"`
	SellPrice decimal.Decimal    `json:"sell_price"`
	OpenedAt  time.Time          `json:"opened_at"`
	ClosedAt  time.Time          `json:"closed_at"`
	PnL       decimal.Decimal    `json:"pnl"`
	Term      TermClassification `json:"term"`
}

// UnknownBasis is the explicit data-gap fact emitted when a sell exhausts
// the lot queue: the history predates the ingested window, so the unmatched
// remainder is surfaced instead of fabricating a cost basis. Its proceeds
// are excluded from realized totals.
type UnknownBasis struct {
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Proceeds  decimal.Decimal `json:"proceeds"`
	ClosedAt  time.Time       `json:"closed_at"`
	SellTrade string          `json:"sell_trade_id"`
}
