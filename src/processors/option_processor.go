// backend/src/processors/option_processor.go
package processors

import (
	"sort"
	"time"

	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/models"
)

// OptionProcessor groups option leg executions into positions keyed by
// (underlying, expiration). Strike and right are deliberately ignored so a
// multi-leg spread on one expiration reports as a single economic position.
type OptionProcessor struct {
	cutoff config.ExpiryCutoffPolicy
}

func NewOptionProcessor(cutoff config.ExpiryCutoffPolicy) *OptionProcessor {
	return &OptionProcessor{cutoff: cutoff}
}

// Process folds option executions (already in timestamp order) into groups
// and resolves each group's status as of asOf.
//
// Status resolution, in priority order:
//  1. Assigned: linked to a stock delivery, excluded from P&L.
//  2. Open: a contract of the group is still in the broker portfolio, or
//     the math below says nothing else.
//  3. Closed: net quantity returned to zero after at least one buy and one
//     sell.
//  4. ExpiredWorthless: expiration passed with quantity remaining and no
//     further trade; for short remainder the P&L is the premium collected.
func (p *OptionProcessor) Process(
	execs []models.Execution,
	assigned map[models.GroupKey]bool,
	stillOpen map[models.GroupKey]bool,
	excluded map[string]bool,
	asOf time.Time,
) []models.OptionGroup {
	type acc struct {
		group     models.OptionGroup
		expiry    time.Time
		hasBuy    bool
		hasSell   bool
		lastTrade time.Time
		lastSell  time.Time
	}
	buckets := make(map[models.GroupKey]*acc)

	for _, e := range execs {
		if e.Kind != models.KindOption || excluded[e.TradeID] {
			continue
		}
		key := groupKeyOf(e)
		a, ok := buckets[key]
		if !ok {
			a = &acc{
				group: models.OptionGroup{
					Key:      key,
					OpenedAt: e.ExecutedAt,
				},
				expiry: e.Expiry,
			}
			buckets[key] = a
		}

		a.group.Executions = append(a.group.Executions, e)
		a.lastTrade = e.ExecutedAt
		switch e.Side {
		case models.SideBuy:
			a.group.BuyCost = a.group.BuyCost.Add(e.Notional()).Add(e.Fee)
			a.group.NetQuantity -= e.Quantity
			a.hasBuy = true
		case models.SideSell:
			a.group.SellProceeds = a.group.SellProceeds.Add(e.Notional()).Sub(e.Fee)
			a.group.NetQuantity += e.Quantity
			a.hasSell = true
			a.lastSell = e.ExecutedAt
		}
	}

	groups := make([]models.OptionGroup, 0, len(buckets))
	for key, a := range buckets {
		g := a.group
		switch {
		case assigned[key]:
			g.Status = models.StatusAssigned
			g.ClosedAt = a.lastTrade
		case stillOpen[key]:
			g.Status = models.StatusOpen
		case g.NetQuantity == 0 && a.hasBuy && a.hasSell:
			g.Status = models.StatusClosed
			g.ClosedAt = a.lastTrade
		case expirationPassed(a.expiry, asOf) && g.NetQuantity != 0:
			g.Status = models.StatusExpiredWorthless
			g.ClosedAt = p.expiryCloseTime(a.expiry, a.lastSell, a.lastTrade)
		default:
			g.Status = models.StatusOpen
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key.String() < groups[j].Key.String()
	})
	return groups
}

// expirationPassed reports whether the whole expiration day is behind asOf.
func expirationPassed(expiry, asOf time.Time) bool {
	return !asOf.Before(expiry.AddDate(0, 0, 1))
}

// expiryCloseTime picks the close timestamp of an expired-worthless group
// according to the configured cutoff policy: the period the premium was
// collected, or the expiration date itself. The reference data's own
// methodology is ambiguous here, which is why this is a policy and not a
// constant.
func (p *OptionProcessor) expiryCloseTime(expiry, lastSell, lastTrade time.Time) time.Time {
	if p.cutoff == config.CutoffExpiration {
		return expiry
	}
	if !lastSell.IsZero() {
		return lastSell
	}
	return lastTrade
}
