// backend/src/models/snapshot.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionKind tags a closed position row as stock or option for display.
type PositionKind string

const (
	PositionStock  PositionKind = "stock"
	PositionOption PositionKind = "option"
)

// ClosedPosition is one row of the dashboard's closed-position list. It is
// derived either from a ClosedMatch or from a non-open OptionGroup; Assigned
// groups never appear here.
type ClosedPosition struct {
	Symbol   string             `json:"symbol"`
	Kind     PositionKind       `json:"type"`
	Status   GroupStatus        `json:"status"`
	Quantity int64              `json:"quantity"`
	OpenedAt time.Time          `json:"opened_at"`
	ClosedAt time.Time          `json:"closed_at"`
	PnL      decimal.Decimal    `json:"realized_pl"`
	Term     TermClassification `json:"term"`
}

// WindowStats is the aggregate for one of the fixed reporting windows.
// WinRate is nil, not zero, when no trade in the window was decided.
type WindowStats struct {
	TotalPnL   decimal.Decimal `json:"total_pl"`
	TradeCount int             `json:"trade_count"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	WinRate    *float64        `json:"win_rate"`
}

// SeriesPoint is one step of the cumulative realized P&L series used for
// charting.
type SeriesPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Total     decimal.Decimal `json:"running_total"`
}

// ReconciliationCause is one advisory explanation for a reconciliation
// discrepancy: a closed item near the reference snapshot boundary whose
// bucketing may differ between the two methodologies.
type ReconciliationCause struct {
	Symbol string          `json:"symbol"`
	Status GroupStatus     `json:"status,omitempty"`
	PnL    decimal.Decimal `json:"realized_pl"`
	Reason string          `json:"reason"`
}

// ReconciliationReport compares the engine's totals against an externally
// reported pair. Differences are signed (calculated - reference) and are
// never treated as errors: the reference methodology is not guaranteed to
// match FIFO.
type ReconciliationReport struct {
	CalculatedShortTerm decimal.Decimal       `json:"calculated_short_term"`
	CalculatedLongTerm  decimal.Decimal       `json:"calculated_long_term"`
	ReferenceShortTerm  decimal.Decimal       `json:"reference_short_term"`
	ReferenceLongTerm   decimal.Decimal       `json:"reference_long_term"`
	ShortTermDifference decimal.Decimal       `json:"short_term_difference"`
	LongTermDifference  decimal.Decimal       `json:"long_term_difference"`
	TotalDifference     decimal.Decimal       `json:"total_difference"`
	Matched             bool                  `json:"matched"`
	CandidateCauses     []ReconciliationCause `json:"candidate_causes"`
}

// ReportSnapshot is the immutable output of one engine recomputation. It is
// built in isolation and published wholesale, so readers never observe a
// partially updated set of totals.
type ReportSnapshot struct {
	GeneratedAt time.Time `json:"generated_at"`

	Today WindowStats `json:"today"`
	Month WindowStats `json:"mtd"`
	YTD   WindowStats `json:"ytd"`

	ShortTermPnL decimal.Decimal `json:"short_term_pl"`
	LongTermPnL  decimal.Decimal `json:"long_term_pl"`
	TotalPnL     decimal.Decimal `json:"total_realized_pl"`

	Series          []SeriesPoint         `json:"series"`
	ClosedPositions []ClosedPosition      `json:"positions"`
	OpenGroups      []OptionGroup         `json:"open_groups"`
	OpenLots        map[string][]StockLot `json:"open_lots"`
	UnknownBasis    []UnknownBasis        `json:"unknown_basis"`

	MalformedCount int `json:"malformed_count"`
	DuplicateCount int `json:"duplicate_count"`
	AmbiguousLinks int `json:"ambiguous_assignment_links"`

	Reconciliation *ReconciliationReport `json:"reconciliation,omitempty"`
}
