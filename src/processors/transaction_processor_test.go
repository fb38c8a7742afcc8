// backend/src/processors/transaction_processor_test.go
package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/models"
)

func raw(id, description string, ts time.Time) models.RawTrade {
	return models.RawTrade{
		TradeID:     id,
		Type:        models.TradeTypeTrade,
		SubType:     models.TradeSubTypeTrade,
		Description: description,
		Timestamp:   ts,
		Source:      "public",
	}
}

func TestTransactionProcessorNormalizesAndSorts(t *testing.T) {
	p := NewTransactionProcessor()

	// Deliberately out of timestamp order.
	batch := p.Process([]models.RawTrade{
		raw("t2", "SELL 2 SOXL260102C00030000 at 7.95", at(20, 10)),
		raw("t1", "BUY 2 SOXL260102C00030000 at 6.90", at(10, 10)),
	})

	require.Len(t, batch.Executions, 2)
	assert.Equal(t, "t1", batch.Executions[0].TradeID)
	assert.Equal(t, "t2", batch.Executions[1].TradeID)
	assert.Zero(t, batch.Malformed)
	assert.Zero(t, batch.Duplicates)
}

func TestTransactionProcessorCountsMalformed(t *testing.T) {
	p := NewTransactionProcessor()

	batch := p.Process([]models.RawTrade{
		raw("t1", "BUY 100 HIMS at 185.01", at(5, 10)),
		raw("bad1", "not a trade description", at(5, 11)),
		raw("", "BUY 1 AAPL at 170.00", at(5, 12)),
	})

	require.Len(t, batch.Executions, 1)
	assert.Equal(t, 2, batch.Malformed)
}

func TestTransactionProcessorDeduplicatesByTradeID(t *testing.T) {
	p := NewTransactionProcessor()

	dup := raw("t1", "BUY 100 HIMS at 185.01", at(5, 10))
	batch := p.Process([]models.RawTrade{dup, dup, dup})

	require.Len(t, batch.Executions, 1)
	assert.Equal(t, 2, batch.Duplicates)
}

func TestTransactionProcessorSkipsNonExecutions(t *testing.T) {
	p := NewTransactionProcessor()

	div := raw("d1", "Dividend payment", at(5, 10))
	div.Type = "DIVIDEND"

	batch := p.Process([]models.RawTrade{
		div,
		raw("t1", "BUY 100 HIMS at 185.01", at(5, 11)),
	})

	require.Len(t, batch.Executions, 1)
	assert.Equal(t, 1, batch.Skipped)
	assert.Zero(t, batch.Malformed)
}

func TestTransactionProcessorTimestampTieBreaksOnIngestionOrder(t *testing.T) {
	p := NewTransactionProcessor()

	ts := at(5, 10)
	batch := p.Process([]models.RawTrade{
		raw("first", "BUY 100 HIMS at 185.01", ts),
		raw("second", "SELL 100 HIMS at 185.05", ts),
	})

	require.Len(t, batch.Executions, 2)
	assert.Equal(t, "first", batch.Executions[0].TradeID)
	assert.Equal(t, "second", batch.Executions[1].TradeID)
}
