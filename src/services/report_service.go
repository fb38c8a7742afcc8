// backend/src/services/report_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/database"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/parsers/publicbroker"
	"github.com/username/tradefolio/backend/src/processors"
)

const (
	ckClosedPositions      = "res_closed_positions_days_%d"
	ckUnknownBasis         = "res_unknown_basis"
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

type reportServiceImpl struct {
	cfg *config.AppConfig

	transactionProcessor    *processors.TransactionProcessor
	assignmentProcessor     *processors.AssignmentProcessor
	optionProcessor         *processors.OptionProcessor
	stockProcessor          *processors.StockProcessor
	aggregationProcessor    *processors.AggregationProcessor
	reconciliationProcessor *processors.ReconciliationProcessor

	reportCache *cache.Cache

	// snapMu guards the published snapshot; readers never see a partially
	// built report.
	snapMu   sync.RWMutex
	snapshot *models.ReportSnapshot

	// recomputing serializes recomputes. TryLock lets a concurrent trigger
	// bail out instead of queueing a redundant run.
	recomputing sync.Mutex

	// now is stubbed in tests.
	now func() time.Time
}

func NewReportService(
	cfg *config.AppConfig,
	transactionProcessor *processors.TransactionProcessor,
	assignmentProcessor *processors.AssignmentProcessor,
	optionProcessor *processors.OptionProcessor,
	stockProcessor *processors.StockProcessor,
	aggregationProcessor *processors.AggregationProcessor,
	reconciliationProcessor *processors.ReconciliationProcessor,
	reportCache *cache.Cache,
) ReportService {
	return &reportServiceImpl{
		cfg:                     cfg,
		transactionProcessor:    transactionProcessor,
		assignmentProcessor:     assignmentProcessor,
		optionProcessor:         optionProcessor,
		stockProcessor:          stockProcessor,
		aggregationProcessor:    aggregationProcessor,
		reconciliationProcessor: reconciliationProcessor,
		reportCache:             reportCache,
		now:                     time.Now,
	}
}

func (s *reportServiceImpl) Current() (*models.ReportSnapshot, error) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.snapshot == nil {
		return nil, ErrSnapshotNotReady
	}
	return s.snapshot, nil
}

func (s *reportServiceImpl) Recompute(ctx context.Context) (*models.ReportSnapshot, error) {
	if !s.recomputing.TryLock() {
		logger.L.Debug("Recompute already in flight, dropping trigger")
		return nil, ErrRecomputeInFlight
	}
	defer s.recomputing.Unlock()

	startTime := time.Now()
	asOf := s.now()

	raws, err := fetchRawTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecomputeFailed, err)
	}
	stillOpen, err := fetchOpenOptionGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecomputeFailed, err)
	}

	snapshot := s.build(raws, stillOpen, asOf)

	s.snapMu.Lock()
	s.snapshot = snapshot
	s.snapMu.Unlock()
	s.InvalidateCache()

	if _, err := database.DB.ExecContext(ctx,
		`INSERT INTO report_runs
		 (generated_at, short_term_pl, long_term_pl, total_pl, closed_count, malformed_count, duplicate_count, unknown_basis_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.GeneratedAt, snapshot.ShortTermPnL.String(), snapshot.LongTermPnL.String(),
		snapshot.TotalPnL.String(), len(snapshot.ClosedPositions), snapshot.MalformedCount,
		snapshot.DuplicateCount, len(snapshot.UnknownBasis),
	); err != nil {
		logger.L.Warn("Failed to record report run", "error", err)
	}

	logger.L.Info("Report recompute complete",
		"trades", len(raws),
		"positions", len(snapshot.ClosedPositions),
		"malformed", snapshot.MalformedCount,
		"duration", time.Since(startTime))
	return snapshot, nil
}

// build runs the full processor pipeline. It is deterministic: the same raw
// trades and portfolio state always produce the same snapshot.
func (s *reportServiceImpl) build(raws []models.RawTrade, stillOpen map[models.GroupKey]bool, asOf time.Time) *models.ReportSnapshot {
	batch := s.transactionProcessor.Process(raws)

	linked := s.assignmentProcessor.Process(batch.Executions)

	groups := s.optionProcessor.Process(batch.Executions, linked.AssignedGroups, stillOpen, linked.ConsumedTradeIDs, asOf)

	matched := s.stockProcessor.Process(batch.Executions, linked.SyntheticLots, linked.ConsumedTradeIDs)

	agg := s.aggregationProcessor.Process(groups, matched.Matches, asOf)

	snapshot := &models.ReportSnapshot{
		GeneratedAt:     asOf,
		Today:           agg.Today,
		Month:           agg.Month,
		YTD:             agg.YTD,
		ShortTermPnL:    agg.ShortTermPnL,
		LongTermPnL:     agg.LongTermPnL,
		TotalPnL:        agg.TotalPnL,
		Series:          agg.Series,
		ClosedPositions: agg.Positions,
		OpenLots:        matched.OpenLots,
		UnknownBasis:    matched.UnknownBasis,
		MalformedCount:  batch.Malformed,
		DuplicateCount:  batch.Duplicates,
		AmbiguousLinks:  linked.AmbiguousCount,
	}
	for _, g := range groups {
		if g.Status == models.StatusOpen {
			snapshot.OpenGroups = append(snapshot.OpenGroups, g)
		}
	}

	if s.cfg.ReferenceShortTerm != nil && s.cfg.ReferenceLongTerm != nil {
		snapshot.Reconciliation = s.reconciliationProcessor.Process(
			agg.ShortTermPnL, agg.LongTermPnL,
			*s.cfg.ReferenceShortTerm, *s.cfg.ReferenceLongTerm,
			agg.Positions, asOf,
		)
	}
	return snapshot
}

func (s *reportServiceImpl) ClosedPositions(days int) ([]models.ClosedPosition, error) {
	cacheKey := fmt.Sprintf(ckClosedPositions, days)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.ClosedPosition), nil
	}
	snapshot, err := s.Current()
	if err != nil {
		return nil, err
	}
	positions := snapshot.ClosedPositions
	if days > 0 {
		cutoff := snapshot.GeneratedAt.AddDate(0, 0, -days)
		filtered := make([]models.ClosedPosition, 0, len(positions))
		for _, p := range positions {
			if !p.ClosedAt.Before(cutoff) {
				filtered = append(filtered, p)
			}
		}
		positions = filtered
	}
	s.reportCache.Set(cacheKey, positions, DefaultCacheExpiration)
	return positions, nil
}

func (s *reportServiceImpl) UnknownBasisSales() ([]models.UnknownBasis, error) {
	if cached, found := s.reportCache.Get(ckUnknownBasis); found {
		return cached.([]models.UnknownBasis), nil
	}
	snapshot, err := s.Current()
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(ckUnknownBasis, snapshot.UnknownBasis, DefaultCacheExpiration)
	return snapshot.UnknownBasis, nil
}

func (s *reportServiceImpl) InvalidateCache() {
	s.reportCache.Flush()
}

// fetchRawTrades loads every persisted broker record in execution order.
// Ties on the timestamp fall back to insertion order, which matches the
// order the broker reported them in.
func fetchRawTrades(ctx context.Context) ([]models.RawTrade, error) {
	rows, err := database.DB.QueryContext(ctx, `
		SELECT trade_id, tx_type, tx_subtype, description, symbol, quantity,
		       net_amount, executed_at, source, raw_json
		FROM raw_trades
		ORDER BY executed_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying raw trades: %w", err)
	}
	defer rows.Close()

	var trades []models.RawTrade
	for rows.Next() {
		var t models.RawTrade
		if err := rows.Scan(
			&t.TradeID, &t.Type, &t.SubType, &t.Description, &t.Symbol,
			&t.Quantity, &t.NetAmount, &t.Timestamp, &t.Source, &t.RawJSON,
		); err != nil {
			return nil, fmt.Errorf("error scanning raw trade row: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// fetchOpenOptionGroups maps the broker portfolio's open option contracts to
// their group keys so a partially traded group stays Open past expiration
// checks.
func fetchOpenOptionGroups(ctx context.Context) (map[models.GroupKey]bool, error) {
	rows, err := database.DB.QueryContext(ctx,
		`SELECT symbol FROM portfolio_positions WHERE is_option = 1`)
	if err != nil {
		return nil, fmt.Errorf("error querying portfolio positions: %w", err)
	}
	defer rows.Close()

	open := make(map[models.GroupKey]bool)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("error scanning portfolio position: %w", err)
		}
		if key, ok := publicbroker.ParseGroupKey(symbol); ok {
			open[key] = true
		}
	}
	return open, rows.Err()
}
