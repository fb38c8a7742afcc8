// backend/src/processors/transaction_processor.go
package processors

import (
	"errors"
	"sort"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/parsers"
)

// NormalizedBatch is the output of one normalization pass: the canonical
// executions in timestamp order plus the diagnostic counts the snapshot
// reports instead of failing.
type NormalizedBatch struct {
	Executions []models.Execution
	Malformed  int
	Duplicates int
	Skipped    int
}

// TransactionProcessor turns raw broker records into deduplicated canonical
// executions using the source-specific parser.
type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Process normalizes raw trades in ingestion order. A repeated broker trade
// id is dropped silently so re-ingesting the same feed never double-counts;
// malformed records are counted and skipped, never fatal.
func (p *TransactionProcessor) Process(raws []models.RawTrade) NormalizedBatch {
	var batch NormalizedBatch
	seen := make(map[string]bool, len(raws))

	for _, raw := range raws {
		source := raw.Source
		if source == "" {
			source = "public"
		}
		parser, err := parsers.GetParser(source)
		if err != nil {
			logger.L.Error("No parser for trade source", "source", source, "tradeID", raw.TradeID)
			batch.Malformed++
			continue
		}

		exec, err := parser.Normalize(raw)
		if err != nil {
			if errors.Is(err, parsers.ErrNotExecution) {
				batch.Skipped++
				continue
			}
			logger.L.Warn("Skipping malformed trade record", "tradeID", raw.TradeID, "error", err)
			batch.Malformed++
			continue
		}

		if seen[exec.TradeID] {
			batch.Duplicates++
			continue
		}
		seen[exec.TradeID] = true

		exec.Seq = len(batch.Executions)
		batch.Executions = append(batch.Executions, exec)
	}

	// Timestamp order with ingestion order as the tie-break. Matching
	// depends on this being total.
	sort.SliceStable(batch.Executions, func(i, j int) bool {
		if !batch.Executions[i].ExecutedAt.Equal(batch.Executions[j].ExecutedAt) {
			return batch.Executions[i].ExecutedAt.Before(batch.Executions[j].ExecutedAt)
		}
		return batch.Executions[i].Seq < batch.Executions[j].Seq
	})

	return batch
}
