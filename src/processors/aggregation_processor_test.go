// backend/src/processors/aggregation_processor_test.go
package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/models"
)

func closedGroup(key string, pnl string, openedAt, closedAt time.Time) models.OptionGroup {
	return models.OptionGroup{
		Key:          models.GroupKey{Underlying: key, Expiry: "260102"},
		Executions:   []models.Execution{{Side: models.SideSell, Quantity: 1}},
		SellProceeds: d(pnl),
		Status:       models.StatusClosed,
		OpenedAt:     openedAt,
		ClosedAt:     closedAt,
	}
}

func stockMatch(symbol, pnl string, openedAt, closedAt time.Time) models.ClosedMatch {
	return models.ClosedMatch{
		Symbol:   symbol,
		Quantity: 100,
		OpenedAt: openedAt,
		ClosedAt: closedAt,
		PnL:      d(pnl),
		Term:     models.ClassifyTerm(openedAt, closedAt),
	}
}

func TestAggregationWindows(t *testing.T) {
	p := NewAggregationProcessor()
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	groups := []models.OptionGroup{
		closedGroup("SOXL", "100", at(1, 10), asOf.Add(-2*time.Hour)), // today
		closedGroup("RGTI", "50", at(1, 10), asOf.AddDate(0, 0, -10)), // this month
		closedGroup("CELH", "-30", at(1, 10), asOf.AddDate(0, -3, 0)), // this year
	}
	matches := []models.ClosedMatch{
		stockMatch("HIMS", "16", asOf.AddDate(-1, 0, -30), asOf.AddDate(-1, 0, 0)), // last year
	}

	result := p.Process(groups, matches, asOf)

	assert.True(t, result.Today.TotalPnL.Equal(d("100")), "today %s", result.Today.TotalPnL)
	assert.Equal(t, 1, result.Today.TradeCount)

	assert.True(t, result.Month.TotalPnL.Equal(d("150")), "month %s", result.Month.TotalPnL)
	assert.Equal(t, 2, result.Month.TradeCount)

	assert.True(t, result.YTD.TotalPnL.Equal(d("120")), "ytd %s", result.YTD.TotalPnL)
	assert.Equal(t, 3, result.YTD.TradeCount)

	// The all-time totals include last year's stock match.
	assert.True(t, result.TotalPnL.Equal(d("136")), "total %s", result.TotalPnL)
}

func TestAggregationTermSplit(t *testing.T) {
	p := NewAggregationProcessor()
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	opened := asOf.AddDate(-2, 0, 0)
	matches := []models.ClosedMatch{
		stockMatch("HIMS", "300", opened, asOf.Add(-time.Hour)),                 // held two years
		stockMatch("CRWV", "-40", asOf.AddDate(0, 0, -5), asOf.Add(-time.Hour)), // held days
	}

	result := p.Process(nil, matches, asOf)

	assert.True(t, result.LongTermPnL.Equal(d("300")), "long %s", result.LongTermPnL)
	assert.True(t, result.ShortTermPnL.Equal(d("-40")), "short %s", result.ShortTermPnL)
	assert.True(t, result.TotalPnL.Equal(d("260")), "total %s", result.TotalPnL)
}

func TestAggregationWinRate(t *testing.T) {
	p := NewAggregationProcessor()
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	matches := []models.ClosedMatch{
		stockMatch("A", "10", asOf.Add(-3*time.Hour), asOf.Add(-2*time.Hour)),
		stockMatch("B", "10", asOf.Add(-3*time.Hour), asOf.Add(-2*time.Hour)),
		stockMatch("C", "-5", asOf.Add(-3*time.Hour), asOf.Add(-2*time.Hour)),
		stockMatch("D", "0", asOf.Add(-3*time.Hour), asOf.Add(-2*time.Hour)), // breakeven, not decided
	}

	result := p.Process(nil, matches, asOf)

	require.NotNil(t, result.Today.WinRate)
	assert.InDelta(t, 0.6667, *result.Today.WinRate, 0.0001)
	assert.Equal(t, 4, result.Today.TradeCount)
	assert.Equal(t, 2, result.Today.Wins)
	assert.Equal(t, 1, result.Today.Losses)
}

func TestAggregationWinRateUndefinedWithoutDecidedTrades(t *testing.T) {
	p := NewAggregationProcessor()
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	// Only a breakeven trade today: the rate is undefined, not 0 and not 1.
	matches := []models.ClosedMatch{
		stockMatch("A", "0", asOf.Add(-3*time.Hour), asOf.Add(-2*time.Hour)),
	}

	result := p.Process(nil, matches, asOf)
	assert.Nil(t, result.Today.WinRate)
	assert.Equal(t, 1, result.Today.TradeCount)
}

func TestAggregationExcludesOpenAndAssignedGroups(t *testing.T) {
	p := NewAggregationProcessor()
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	open := closedGroup("SOXL", "100", at(1, 10), at(2, 10))
	open.Status = models.StatusOpen
	assigned := closedGroup("CELH", "200", at(1, 10), at(2, 10))
	assigned.Status = models.StatusAssigned

	result := p.Process([]models.OptionGroup{open, assigned}, nil, asOf)

	assert.Empty(t, result.Positions)
	assert.True(t, result.TotalPnL.IsZero())
}

func TestAggregationSeriesIsCumulativeAndOrdered(t *testing.T) {
	p := NewAggregationProcessor()
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	matches := []models.ClosedMatch{
		stockMatch("B", "-5", at(1, 10), at(3, 10)),
		stockMatch("A", "10", at(1, 10), at(2, 10)),
	}

	result := p.Process(nil, matches, asOf)

	require.Len(t, result.Series, 2)
	assert.Equal(t, at(2, 10), result.Series[0].Timestamp)
	assert.True(t, result.Series[0].Total.Equal(d("10")))
	assert.Equal(t, at(3, 10), result.Series[1].Timestamp)
	assert.True(t, result.Series[1].Total.Equal(d("5")))
}

func TestAggregationIsIdempotent(t *testing.T) {
	p := NewAggregationProcessor()
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	groups := []models.OptionGroup{closedGroup("SOXL", "184.39", at(1, 10), at(2, 10))}
	matches := []models.ClosedMatch{stockMatch("HIMS", "16", at(5, 10), at(6, 10))}

	first := p.Process(groups, matches, asOf)
	second := p.Process(groups, matches, asOf)

	assert.Equal(t, first, second)
}
