// backend/src/processors/reconciliation_processor.go
package processors

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

// matchTolerance is the absolute difference below which the calculated and
// reference totals are considered matched (sub-cent noise from the
// reference feed's own rounding).
var matchTolerance = decimal.NewFromFloat(0.01)

// ReconciliationProcessor compares the engine's short/long-term totals
// against externally reported reference totals. Its output is advisory: the
// reference methodology is not guaranteed to be FIFO, so a discrepancy is
// reported with candidate causes, never raised as an error.
type ReconciliationProcessor struct {
	boundaryDays int
}

func NewReconciliationProcessor(boundaryDays int) *ReconciliationProcessor {
	return &ReconciliationProcessor{boundaryDays: boundaryDays}
}

// Process computes signed differences (calculated - reference) per category
// and flags closed items near the snapshot boundary whose bucketing could
// plausibly differ between the two methodologies.
func (p *ReconciliationProcessor) Process(
	calcShort, calcLong decimal.Decimal,
	refShort, refLong decimal.Decimal,
	positions []models.ClosedPosition,
	asOf time.Time,
) *models.ReconciliationReport {
	report := &models.ReconciliationReport{
		CalculatedShortTerm: calcShort,
		CalculatedLongTerm:  calcLong,
		ReferenceShortTerm:  refShort,
		ReferenceLongTerm:   refLong,
		ShortTermDifference: calcShort.Sub(refShort),
		LongTermDifference:  calcLong.Sub(refLong),
	}
	report.TotalDifference = report.ShortTermDifference.Add(report.LongTermDifference)
	report.Matched = report.ShortTermDifference.Abs().LessThan(matchTolerance) &&
		report.LongTermDifference.Abs().LessThan(matchTolerance)

	if report.Matched {
		return report
	}

	boundary := time.Duration(p.boundaryDays) * 24 * time.Hour
	for _, pos := range positions {
		age := asOf.Sub(pos.ClosedAt)
		if age < 0 || age > boundary {
			continue
		}
		reason := fmt.Sprintf("closed within %dd of the snapshot boundary; may fall outside the reference window", p.boundaryDays)
		if pos.Status == models.StatusExpiredWorthless {
			reason = "expired worthless near the snapshot date; premium/expiration cutoff may differ from the reference"
		}
		report.CandidateCauses = append(report.CandidateCauses, models.ReconciliationCause{
			Symbol: pos.Symbol,
			Status: pos.Status,
			PnL:    pos.PnL,
			Reason: reason,
		})
	}
	return report
}
