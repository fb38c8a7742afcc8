// backend/src/processors/assignment_processor.go
package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
)

// AssignmentResult carries the synthetic lots and bookkeeping produced by
// linking assignment legs to their stock deliveries.
type AssignmentResult struct {
	// AssignedGroups marks option groups whose economics transferred into a
	// stock position. They are excluded from P&L aggregation.
	AssignedGroups map[models.GroupKey]bool
	// SyntheticLots are stock lots created from assignments, cost basis at
	// the strike price. They join ordinary FIFO matching.
	SyntheticLots []models.StockLot
	// ConsumedTradeIDs are executions absorbed by the linker: assignment
	// legs and the buy-side deliveries converted into synthetic lots. They
	// must not reach the grouper or the lot matcher again.
	ConsumedTradeIDs map[string]bool
	// AmbiguousCount counts assignment legs with no matching delivery on
	// the same trading day. Those legs are dropped so the group resolves as
	// an ordinary expiration.
	AmbiguousCount int
}

// AssignmentProcessor links option assignment/exercise legs to their stock
// deliveries. Assignment is not a cash P&L event by itself: the premium
// economics move into the stock lot's basis, so the option group is marked
// Assigned and a lot is created at the strike.
type AssignmentProcessor struct{}

func NewAssignmentProcessor() *AssignmentProcessor { return &AssignmentProcessor{} }

// Process scans executions (in timestamp order) for assignment legs and
// pairs each with a stock delivery of the same underlying on the same
// trading day. Deliveries are reported either in shares or as
// legQuantity x contract multiplier; both are accepted.
func (p *AssignmentProcessor) Process(execs []models.Execution) AssignmentResult {
	result := AssignmentResult{
		AssignedGroups:   make(map[models.GroupKey]bool),
		ConsumedTradeIDs: make(map[string]bool),
	}

	for _, leg := range execs {
		if leg.Kind != models.KindOption || !leg.Assignment {
			continue
		}

		key := groupKeyOf(leg)
		delivery, found := findDelivery(execs, leg, result.ConsumedTradeIDs)
		if !found {
			logger.L.Warn("Assignment leg has no matching stock delivery; treating as ordinary expiration",
				"group", key.String(), "tradeID", leg.TradeID, "strike", leg.Strike)
			result.AmbiguousCount++
			// Drop the leg so the group keeps its remaining quantity and
			// expires normally.
			result.ConsumedTradeIDs[leg.TradeID] = true
			continue
		}

		result.AssignedGroups[key] = true
		result.ConsumedTradeIDs[leg.TradeID] = true

		if delivery.Side == models.SideBuy {
			// Shares put to (or called by) us: the delivery becomes a lot
			// with cost basis at the strike, not at whatever the record's
			// price field says.
			result.ConsumedTradeIDs[delivery.TradeID] = true
			result.SyntheticLots = append(result.SyntheticLots, models.StockLot{
				Symbol:           leg.Underlying,
				OriginalQuantity: delivery.Quantity,
				Remaining:        delivery.Quantity,
				CostBasis:        leg.Strike,
				FeePerShare:      decimal.Zero,
				OpenedAt:         delivery.ExecutedAt,
				Provenance:       models.LotAssignedFromOption,
				SourceGroup:      key,
				Seq:              delivery.Seq,
			})
		}
		// Sell-side deliveries (shares called away at the strike) stay in
		// the stream: they are ordinary sells that consume existing lots.
	}

	return result
}

// findDelivery locates the stock delivery paired with an assignment leg:
// same underlying, same trading day, share quantity matching either the leg
// quantity or leg quantity times the contract multiplier.
func findDelivery(execs []models.Execution, leg models.Execution, consumed map[string]bool) (models.Execution, bool) {
	legDay := leg.ExecutedAt.Format("2006-01-02")
	for _, e := range execs {
		if e.Kind != models.KindStock || !e.Assignment || consumed[e.TradeID] {
			continue
		}
		if e.Underlying != leg.Underlying {
			continue
		}
		if e.ExecutedAt.Format("2006-01-02") != legDay {
			continue
		}
		if e.Quantity == leg.Quantity || e.Quantity == leg.Quantity*models.ContractMultiplier {
			return e, true
		}
	}
	return models.Execution{}, false
}

func groupKeyOf(e models.Execution) models.GroupKey {
	return models.GroupKey{Underlying: e.Underlying, Expiry: e.Expiry.Format("060102")}
}
