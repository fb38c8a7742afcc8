// backend/src/parsers/publicbroker/parser.go
package publicbroker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/parsers"
)

// Option contract symbols are OCC-style, embedded in the description:
// underlying, YYMMDD expiration, C/P right, strike times 1000 padded to
// eight digits. Example: SOXL260102C00030000.
var optionSymbolRe = regexp.MustCompile(`^([A-Z]+)(\d{6})([CP])(\d{8})$`)

// Trade descriptions follow "BUY 2 SOXL260102C00030000 at 1.23". Assignment
// and exercise records omit the price clause.
var descriptionRe = regexp.MustCompile(`(?i)^(BUY|SELL|ASSIGNED|EXERCISED)\s+([\d.]+)\s+(\S+)(?:\s+at\s+([\d.,]+))?$`)

// PublicParser implements the parsers.Parser interface for Public.com
// history records.
type PublicParser struct{}

// NewParser creates a new instance of the PublicParser.
func NewParser() *PublicParser { return &PublicParser{} }

func (p *PublicParser) Source() string { return "public" }

// Normalize converts one Public.com history record into a canonical
// Execution. Non-trade records return ErrNotExecution; records with a bad
// shape return ErrMalformedRecord.
func (p *PublicParser) Normalize(raw models.RawTrade) (models.Execution, error) {
	if raw.Type != models.TradeTypeTrade {
		return models.Execution{}, parsers.ErrNotExecution
	}

	assignment := raw.SubType == models.TradeSubTypeAssignment || raw.SubType == models.TradeSubTypeExercise
	if raw.SubType != models.TradeSubTypeTrade && !assignment {
		return models.Execution{}, parsers.ErrNotExecution
	}

	if strings.TrimSpace(raw.TradeID) == "" {
		return models.Execution{}, fmt.Errorf("%w: missing trade id", parsers.ErrMalformedRecord)
	}
	if raw.Timestamp.IsZero() {
		return models.Execution{}, fmt.Errorf("%w: missing timestamp (trade %s)", parsers.ErrMalformedRecord, raw.TradeID)
	}

	m := descriptionRe.FindStringSubmatch(strings.TrimSpace(raw.Description))
	if m == nil {
		return models.Execution{}, fmt.Errorf("%w: unparseable description %q (trade %s)", parsers.ErrMalformedRecord, raw.Description, raw.TradeID)
	}

	side, err := parseSide(m[1])
	if err != nil {
		return models.Execution{}, fmt.Errorf("%w: %v (trade %s)", parsers.ErrMalformedRecord, err, raw.TradeID)
	}

	quantity, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || quantity <= 0 {
		return models.Execution{}, fmt.Errorf("%w: non-positive quantity %q (trade %s)", parsers.ErrMalformedRecord, m[2], raw.TradeID)
	}

	symbol := strings.ToUpper(m[3])
	if symbol == "" {
		return models.Execution{}, fmt.Errorf("%w: missing symbol (trade %s)", parsers.ErrMalformedRecord, raw.TradeID)
	}

	price := decimal.Zero
	if m[4] != "" {
		price, err = decimal.NewFromString(strings.ReplaceAll(m[4], ",", ""))
		if err != nil {
			return models.Execution{}, fmt.Errorf("%w: invalid price %q (trade %s)", parsers.ErrMalformedRecord, m[4], raw.TradeID)
		}
	}
	// A zero price is only legitimate on assignment/exercise legs, which are
	// not cash events by themselves.
	if !price.IsPositive() && !assignment {
		return models.Execution{}, fmt.Errorf("%w: non-positive price (trade %s)", parsers.ErrMalformedRecord, raw.TradeID)
	}
	if price.IsNegative() {
		return models.Execution{}, fmt.Errorf("%w: negative price (trade %s)", parsers.ErrMalformedRecord, raw.TradeID)
	}

	exec := models.Execution{
		TradeID:    raw.TradeID,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		ExecutedAt: raw.Timestamp,
		Assignment: assignment,
	}

	if om := optionSymbolRe.FindStringSubmatch(symbol); om != nil {
		exec.Kind = models.KindOption
		exec.Underlying = om[1]
		expiry, err := time.Parse("060102", om[2])
		if err != nil {
			return models.Execution{}, fmt.Errorf("%w: invalid expiration in %q (trade %s)", parsers.ErrMalformedRecord, symbol, raw.TradeID)
		}
		exec.Expiry = expiry
		exec.Right = models.OptionRight(om[3])
		strikeThousandths, _ := strconv.ParseInt(om[4], 10, 64)
		exec.Strike = decimal.New(strikeThousandths, -3)
	} else {
		exec.Kind = models.KindStock
		exec.Underlying = symbol
	}

	exec.Fee = deriveFee(exec, raw.NetAmount)
	return exec, nil
}

// ParseGroupKey extracts the option group key from an OCC-style contract
// symbol. Returns false for anything that is not an option symbol, such as
// plain equity tickers.
func ParseGroupKey(symbol string) (models.GroupKey, bool) {
	m := optionSymbolRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(symbol)))
	if m == nil {
		return models.GroupKey{}, false
	}
	return models.GroupKey{Underlying: m[1], Expiry: m[2]}, true
}

// parseSide maps the description verb to a buy/sell side. An assignment leg
// closes a short position (a buy at zero); an exercise leg closes a long
// one (a sell at zero).
func parseSide(verb string) (models.Side, error) {
	switch strings.ToUpper(verb) {
	case "BUY", "ASSIGNED":
		return models.SideBuy, nil
	case "SELL", "EXERCISED":
		return models.SideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", verb)
}

// deriveFee recovers the per-fill fee from the difference between the gross
// notional and the broker's signed net amount. Buys settle at notional plus
// fees, sells at notional minus fees.
func deriveFee(exec models.Execution, netAmount float64) decimal.Decimal {
	if netAmount == 0 {
		return decimal.Zero
	}
	net := decimal.NewFromFloat(netAmount).Abs()
	fee := exec.Notional().Sub(net).Abs()
	return fee.Round(2)
}
