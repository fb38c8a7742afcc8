// backend/src/models/execution.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentKind distinguishes stock fills from option leg fills.
type InstrumentKind string

const (
	KindStock  InstrumentKind = "STOCK"
	KindOption InstrumentKind = "OPTION"
)

// Side is the direction of an execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OptionRight is the call/put flag of an option leg.
type OptionRight string

const (
	RightCall OptionRight = "C"
	RightPut  OptionRight = "P"
)

// ContractMultiplier is the share-equivalent size of one option contract.
const ContractMultiplier = 100

// Execution is the canonical, immutable form of one executed fill. It is
// created once by a parser from a RawTrade and never mutated afterwards.
// TradeID is the deduplication key across re-ingestions of the same feed.
type Execution struct {
	TradeID    string          `json:"trade_id"`
	Kind       InstrumentKind  `json:"kind"`
	Underlying string          `json:"underlying"`
	Expiry     time.Time       `json:"expiry,omitempty"` // options only, day precision
	Strike     decimal.Decimal `json:"strike,omitempty"` // options only
	Right      OptionRight     `json:"right,omitempty"`  // options only
	Side       Side            `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Fee        decimal.Decimal `json:"fee"`
	ExecutedAt time.Time       `json:"executed_at"`
	Assignment bool            `json:"assignment,omitempty"` // assignment/exercise leg or delivery
	Seq        int             `json:"-"`                    // ingestion order, FIFO tie-break
}

// Notional is the gross cash value of the fill before fees: quantity times
// price, times the contract multiplier for option legs.
func (e Execution) Notional() decimal.Decimal {
	n := e.Price.Mul(decimal.NewFromInt(e.Quantity))
	if e.Kind == KindOption {
		n = n.Mul(decimal.NewFromInt(ContractMultiplier))
	}
	return n
}

// GroupKey is the (underlying, expiration) bucket an option leg belongs to.
// Strike and right are deliberately excluded: a multi-leg spread on one
// expiration is reported as a single economic position.
type GroupKey struct {
	Underlying string `json:"underlying"`
	Expiry     string `json:"expiry"` // YYMMDD, as embedded in the option symbol
}

func (k GroupKey) String() string { return k.Underlying + "_" + k.Expiry }
