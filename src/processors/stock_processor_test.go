// backend/src/processors/stock_processor_test.go
package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/models"
)

func TestStockFIFOSingleLotRoundTrip(t *testing.T) {
	p := NewStockProcessor()

	// 400 shares bought at 185.01, sold at 185.05: +16.00 before fees.
	execs := seqOrdered([]models.Execution{
		stkExec("b1", "HIMS", models.SideBuy, 400, "185.01", "0", at(5, 10)),
		stkExec("s1", "HIMS", models.SideSell, 400, "185.05", "0", at(5, 14)),
	})

	result := p.Process(execs, nil, noIDs())

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, int64(400), m.Quantity)
	assert.True(t, m.PnL.Equal(d("16.00")), "pnl %s", m.PnL)
	assert.Equal(t, models.ShortTerm, m.Term)
	assert.Empty(t, result.OpenLots["HIMS"])
	assert.Empty(t, result.UnknownBasis)
}

func TestStockFIFOFeesReduceMatchPnL(t *testing.T) {
	p := NewStockProcessor()

	execs := seqOrdered([]models.Execution{
		stkExec("b1", "HIMS", models.SideBuy, 400, "185.01", "4.00", at(5, 10)),
		stkExec("s1", "HIMS", models.SideSell, 400, "185.05", "2.00", at(5, 14)),
	})

	result := p.Process(execs, nil, noIDs())
	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].PnL.Equal(d("10.00")), "pnl %s", result.Matches[0].PnL)
}

func TestStockFIFOSellSplitsAcrossLots(t *testing.T) {
	p := NewStockProcessor()

	execs := seqOrdered([]models.Execution{
		stkExec("b1", "HIMS", models.SideBuy, 100, "10.00", "0", at(1, 10)),
		stkExec("b2", "HIMS", models.SideBuy, 100, "20.00", "0", at(2, 10)),
		stkExec("s1", "HIMS", models.SideSell, 150, "30.00", "0", at(3, 10)),
	})

	result := p.Process(execs, nil, noIDs())

	require.Len(t, result.Matches, 2)
	// The older lot is consumed in full first.
	assert.Equal(t, int64(100), result.Matches[0].Quantity)
	assert.True(t, result.Matches[0].PnL.Equal(d("2000")), "pnl %s", result.Matches[0].PnL)
	assert.Equal(t, int64(50), result.Matches[1].Quantity)
	assert.True(t, result.Matches[1].PnL.Equal(d("500")), "pnl %s", result.Matches[1].PnL)

	require.Len(t, result.OpenLots["HIMS"], 1)
	assert.Equal(t, int64(50), result.OpenLots["HIMS"][0].Remaining)
}

func TestStockFIFOConsumesOldestFirst(t *testing.T) {
	p := NewStockProcessor()

	// The cheap lot arrives later in the stream but is older by timestamp.
	execs := seqOrdered([]models.Execution{
		stkExec("b2", "HIMS", models.SideBuy, 100, "20.00", "0", at(2, 10)),
		stkExec("b1", "HIMS", models.SideBuy, 100, "10.00", "0", at(1, 10)),
		stkExec("s1", "HIMS", models.SideSell, 100, "25.00", "0", at(3, 10)),
	})

	result := p.Process(execs, nil, noIDs())
	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].BuyPrice.Equal(d("10.00")), "oldest lot first, got %s", result.Matches[0].BuyPrice)
}

func TestStockSellWithoutLotsSurfacesUnknownBasis(t *testing.T) {
	p := NewStockProcessor()

	execs := seqOrdered([]models.Execution{
		stkExec("s1", "CRWV", models.SideSell, 500, "40.00", "5.00", at(5, 10)),
	})

	result := p.Process(execs, nil, noIDs())

	assert.Empty(t, result.Matches)
	require.Len(t, result.UnknownBasis, 1)
	ub := result.UnknownBasis[0]
	assert.Equal(t, "CRWV", ub.Symbol)
	assert.Equal(t, int64(500), ub.Quantity)
	assert.True(t, ub.Proceeds.Equal(d("19995")), "proceeds %s", ub.Proceeds)
	assert.Equal(t, "s1", ub.SellTrade)
}

func TestStockSyntheticLotJoinsQueue(t *testing.T) {
	p := NewStockProcessor()

	synthetic := models.StockLot{
		Symbol:           "CELH",
		OriginalQuantity: 2000,
		Remaining:        2000,
		CostBasis:        d("65"),
		OpenedAt:         at(2, 10),
		Provenance:       models.LotAssignedFromOption,
		Seq:              0,
	}
	execs := seqOrdered([]models.Execution{
		stkExec("s1", "CELH", models.SideSell, 2000, "70.00", "0", at(10, 10)),
	})

	result := p.Process(execs, []models.StockLot{synthetic}, noIDs())

	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].PnL.Equal(d("10000")), "pnl %s", result.Matches[0].PnL)
	assert.Empty(t, result.UnknownBasis)
}

func TestStockExcludedExecutionsAreIgnored(t *testing.T) {
	p := NewStockProcessor()

	// The consumed delivery buy must not create a second lot on top of the
	// synthetic one.
	execs := seqOrdered([]models.Execution{
		stkExec("del1", "CELH", models.SideBuy, 2000, "64.10", "0", at(2, 10)),
		stkExec("s1", "CELH", models.SideSell, 2000, "70.00", "0", at(10, 10)),
	})
	excluded := map[string]bool{"del1": true}
	synthetic := models.StockLot{
		Symbol: "CELH", OriginalQuantity: 2000, Remaining: 2000,
		CostBasis: d("65"), OpenedAt: at(2, 10),
		Provenance: models.LotAssignedFromOption,
	}

	result := p.Process(execs, []models.StockLot{synthetic}, excluded)

	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].BuyPrice.Equal(d("65")), "basis must come from the strike, got %s", result.Matches[0].BuyPrice)
	assert.Empty(t, result.OpenLots["CELH"])
}

func TestClassifyTermBoundary(t *testing.T) {
	opened := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	// 364 days is short-term, day 365 itself is long-term.
	assert.Equal(t, models.ShortTerm, models.ClassifyTerm(opened, opened.Add(364*24*time.Hour)))
	assert.Equal(t, models.LongTerm, models.ClassifyTerm(opened, opened.Add(365*24*time.Hour)))
}
