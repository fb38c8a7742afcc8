// backend/src/processors/option_processor_test.go
package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/models"
)

func noKeys() map[models.GroupKey]bool { return map[models.GroupKey]bool{} }
func noIDs() map[string]bool           { return map[string]bool{} }

func TestOptionGroupRoundTripCloses(t *testing.T) {
	p := NewOptionProcessor(config.CutoffPremium)
	expiry := at(2, 0)
	asOf := at(25, 0)

	// Buy 2 at 6.90 with 15.26 fees, sell 2 at 7.95 with 10.35 fees:
	// cost 1395.26, proceeds 1579.65, P&L +184.39.
	execs := seqOrdered([]models.Execution{
		optExec("b1", models.SideBuy, 2, "6.90", "15.26", at(1, 10), expiry),
		optExec("s1", models.SideSell, 2, "7.95", "10.35", at(1, 14), expiry),
	})

	groups := p.Process(execs, noKeys(), noKeys(), noIDs(), asOf)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "SOXL_260102", g.Key.String())
	assert.Equal(t, models.StatusClosed, g.Status)
	assert.Equal(t, int64(0), g.NetQuantity)
	assert.True(t, g.BuyCost.Equal(d("1395.26")), "buy cost %s", g.BuyCost)
	assert.True(t, g.SellProceeds.Equal(d("1579.65")), "proceeds %s", g.SellProceeds)
	assert.True(t, g.RealizedPnL().Equal(d("184.39")), "pnl %s", g.RealizedPnL())
	assert.Equal(t, at(1, 14), g.ClosedAt)
}

func TestOptionGroupExpiredWorthlessShortPremium(t *testing.T) {
	p := NewOptionProcessor(config.CutoffPremium)
	expiry := at(2, 0)
	asOf := at(25, 0)

	// Sold 1 contract at 7.2506 and never bought it back: the whole premium
	// is the realized P&L once the expiration day has passed.
	execs := seqOrdered([]models.Execution{
		optExec("s1", models.SideSell, 1, "7.2506", "0", at(1, 10), expiry),
	})

	groups := p.Process(execs, noKeys(), noKeys(), noIDs(), asOf)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, models.StatusExpiredWorthless, g.Status)
	assert.Equal(t, int64(1), g.NetQuantity)
	assert.True(t, g.RealizedPnL().Equal(d("725.06")), "pnl %s", g.RealizedPnL())
	// Premium cutoff: the close lands on the last sell, not the expiration.
	assert.Equal(t, at(1, 10), g.ClosedAt)
}

func TestOptionGroupExpirationNotPassedStaysOpen(t *testing.T) {
	p := NewOptionProcessor(config.CutoffPremium)
	expiry := at(30, 0)

	execs := seqOrdered([]models.Execution{
		optExec("s1", models.SideSell, 1, "7.25", "0", at(1, 10), expiry),
	})

	// asOf is the expiration day itself: the group must not flip to
	// expired until the whole day is behind us.
	groups := p.Process(execs, noKeys(), noKeys(), noIDs(), at(30, 12))
	require.Len(t, groups, 1)
	assert.Equal(t, models.StatusOpen, groups[0].Status)

	groups = p.Process(execs, noKeys(), noKeys(), noIDs(), at(31, 0))
	assert.Equal(t, models.StatusExpiredWorthless, groups[0].Status)
}

func TestOptionGroupPortfolioHoldingForcesOpen(t *testing.T) {
	p := NewOptionProcessor(config.CutoffPremium)
	expiry := at(2, 0)

	execs := seqOrdered([]models.Execution{
		optExec("b1", models.SideBuy, 2, "6.90", "0", at(1, 10), expiry),
	})
	stillOpen := map[models.GroupKey]bool{
		{Underlying: "SOXL", Expiry: "260102"}: true,
	}

	groups := p.Process(execs, noKeys(), stillOpen, noIDs(), at(25, 0))
	require.Len(t, groups, 1)
	assert.Equal(t, models.StatusOpen, groups[0].Status)
}

func TestOptionGroupAssignedExcludesFromLifecycleMath(t *testing.T) {
	p := NewOptionProcessor(config.CutoffPremium)
	expiry := at(2, 0)

	execs := seqOrdered([]models.Execution{
		optExec("s1", models.SideSell, 2, "6.90", "0", at(1, 10), expiry),
	})
	assigned := map[models.GroupKey]bool{
		{Underlying: "SOXL", Expiry: "260102"}: true,
	}

	groups := p.Process(execs, assigned, noKeys(), noIDs(), at(25, 0))
	require.Len(t, groups, 1)
	assert.Equal(t, models.StatusAssigned, groups[0].Status)
}

func TestOptionGroupExpirationCutoffPolicy(t *testing.T) {
	expiry := at(2, 0)
	execs := seqOrdered([]models.Execution{
		optExec("s1", models.SideSell, 1, "7.25", "0", at(1, 10), expiry),
	})

	premium := NewOptionProcessor(config.CutoffPremium).
		Process(execs, noKeys(), noKeys(), noIDs(), at(25, 0))
	expiration := NewOptionProcessor(config.CutoffExpiration).
		Process(execs, noKeys(), noKeys(), noIDs(), at(25, 0))

	require.Len(t, premium, 1)
	require.Len(t, expiration, 1)
	assert.Equal(t, at(1, 10), premium[0].ClosedAt)
	assert.Equal(t, expiry, expiration[0].ClosedAt)
}

func TestOptionGroupsKeyedByUnderlyingAndExpiration(t *testing.T) {
	p := NewOptionProcessor(config.CutoffPremium)
	asOf := at(25, 0)

	// Same underlying, two expirations, plus a different strike on the
	// first expiration: two groups, the strikes merged.
	e1 := optExec("a", models.SideSell, 1, "1.00", "0", at(1, 10), at(2, 0))
	e2 := optExec("b", models.SideSell, 1, "2.00", "0", at(1, 11), at(2, 0))
	e2.Strike = d("35")
	e3 := optExec("c", models.SideSell, 1, "3.00", "0", at(1, 12), at(9, 0))

	groups := p.Process(seqOrdered([]models.Execution{e1, e2, e3}), noKeys(), noKeys(), noIDs(), asOf)
	require.Len(t, groups, 2)
	assert.Equal(t, "SOXL_260102", groups[0].Key.String())
	assert.True(t, groups[0].SellProceeds.Equal(d("300")), "merged strikes, proceeds %s", groups[0].SellProceeds)
	assert.Equal(t, "SOXL_260109", groups[1].Key.String())
}

func TestOptionGroupConservation(t *testing.T) {
	// Closing the remainder before expiry and letting it expire must both
	// account for every dollar: pnl(closed) = proceeds - cost either way.
	expiry := at(2, 0)
	asOf := at(25, 0)
	p := NewOptionProcessor(config.CutoffPremium)

	sellThenBuyBack := seqOrdered([]models.Execution{
		optExec("s1", models.SideSell, 2, "5.00", "0", at(1, 10), expiry),
		optExec("b1", models.SideBuy, 2, "3.00", "0", at(1, 15), expiry),
	})
	closed := p.Process(sellThenBuyBack, noKeys(), noKeys(), noIDs(), asOf)
	require.Len(t, closed, 1)
	assert.Equal(t, models.StatusClosed, closed[0].Status)
	assert.True(t, closed[0].RealizedPnL().Equal(d("400")), "pnl %s", closed[0].RealizedPnL())

	sellAndExpire := seqOrdered([]models.Execution{
		optExec("s1", models.SideSell, 2, "5.00", "0", at(1, 10), expiry),
	})
	expired := p.Process(sellAndExpire, noKeys(), noKeys(), noIDs(), asOf)
	require.Len(t, expired, 1)
	assert.Equal(t, models.StatusExpiredWorthless, expired[0].Status)
	assert.True(t, expired[0].RealizedPnL().Equal(d("1000")), "pnl %s", expired[0].RealizedPnL())
}
