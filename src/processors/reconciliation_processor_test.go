// backend/src/processors/reconciliation_processor_test.go
package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/models"
)

func TestReconciliationMatchesWithinTolerance(t *testing.T) {
	p := NewReconciliationProcessor(3)
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	report := p.Process(d("1500.005"), d("-200"), d("1500.00"), d("-200"), nil, asOf)

	assert.True(t, report.Matched)
	assert.True(t, report.ShortTermDifference.Equal(d("0.005")))
	assert.True(t, report.LongTermDifference.IsZero())
	assert.Empty(t, report.CandidateCauses)
}

func TestReconciliationSignedDifferences(t *testing.T) {
	p := NewReconciliationProcessor(3)
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	// Calculated short is low by 100, long is high by 40. The differences
	// must keep their signs, never absolute values.
	report := p.Process(d("1400"), d("240"), d("1500"), d("200"), nil, asOf)

	assert.False(t, report.Matched)
	assert.True(t, report.ShortTermDifference.Equal(d("-100")), "short diff %s", report.ShortTermDifference)
	assert.True(t, report.LongTermDifference.Equal(d("40")), "long diff %s", report.LongTermDifference)
	assert.True(t, report.TotalDifference.Equal(d("-60")), "total diff %s", report.TotalDifference)
}

func TestReconciliationFlagsBoundaryPositions(t *testing.T) {
	p := NewReconciliationProcessor(3)
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	positions := []models.ClosedPosition{
		{Symbol: "SOXL_260102", Status: models.StatusExpiredWorthless, PnL: d("725.06"), ClosedAt: asOf.AddDate(0, 0, -1)},
		{Symbol: "HIMS", Status: models.StatusClosed, PnL: d("16"), ClosedAt: asOf.AddDate(0, 0, -2)},
		{Symbol: "OLD", Status: models.StatusClosed, PnL: d("5"), ClosedAt: asOf.AddDate(0, -2, 0)},
	}

	report := p.Process(d("1400"), d("0"), d("1500"), d("0"), positions, asOf)

	require.Len(t, report.CandidateCauses, 2)
	assert.Equal(t, "SOXL_260102", report.CandidateCauses[0].Symbol)
	assert.Contains(t, report.CandidateCauses[0].Reason, "expired worthless")
	assert.Equal(t, "HIMS", report.CandidateCauses[1].Symbol)
}

func TestReconciliationMatchedReportSkipsCauses(t *testing.T) {
	p := NewReconciliationProcessor(3)
	asOf := time.Date(2026, 6, 15, 18, 0, 0, 0, time.UTC)

	positions := []models.ClosedPosition{
		{Symbol: "HIMS", Status: models.StatusClosed, PnL: d("16"), ClosedAt: asOf.Add(-time.Hour)},
	}
	report := p.Process(d("16"), d("0"), d("16"), d("0"), positions, asOf)

	assert.True(t, report.Matched)
	assert.Empty(t, report.CandidateCauses)
}
