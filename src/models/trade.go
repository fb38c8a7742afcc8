// backend/src/models/trade.go
package models

import "time"

// Broker record taxonomy as reported by the Public.com history endpoint.
// Only TRADE records carry executions; assignment and exercise events arrive
// as TRADE records with a dedicated subtype and a zero-price description.
const (
	TradeTypeTrade = "TRADE"

	TradeSubTypeTrade      = "TRADE"
	TradeSubTypeAssignment = "ASSIGNMENT"
	TradeSubTypeExercise   = "EXERCISE"
)

// RawTrade is a single record from the broker's transaction history, stored
// as-is in the raw_trades table. Each parser is responsible for turning it
// into a canonical Execution.
type RawTrade struct {
	ID          int64     `json:"-"`
	TradeID     string    `json:"id"`
	Type        string    `json:"type"`
	SubType     string    `json:"subType"`
	Description string    `json:"description"`
	Symbol      string    `json:"symbol,omitempty"`
	Quantity    float64   `json:"quantity,omitempty"`
	NetAmount   float64   `json:"netAmount"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source,omitempty"`
	RawJSON     string    `json:"-"`
}

// PortfolioPosition is one open position from the broker's portfolio
// endpoint. Option groups whose contracts still appear here are kept Open
// regardless of what the transaction math says.
type PortfolioPosition struct {
	Symbol   string `json:"symbol"`
	IsOption bool   `json:"is_option"`
}
