// backend/src/services/sync_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/database"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
)

type syncServiceImpl struct {
	broker        BrokerClient
	reportService ReportService
	now           func() time.Time
}

func NewSyncService(broker BrokerClient, reportService ReportService) SyncService {
	return &syncServiceImpl{
		broker:        broker,
		reportService: reportService,
		now:           time.Now,
	}
}

func (s *syncServiceImpl) Sync(ctx context.Context) (*SyncResult, error) {
	if s.broker == nil {
		return nil, ErrNoBrokerConfigured
	}
	overallStartTime := time.Now()
	logger.L.Info("Broker sync START")

	token, err := s.broker.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	accountID, err := s.broker.AccountID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	// The history endpoint is inclusive on both ends. Default window is
	// year-to-date; LOOKBACK_DAYS overrides it with a rolling window.
	now := s.now()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	if config.Cfg != nil && config.Cfg.LookbackDays > 0 {
		start = now.AddDate(0, 0, -config.Cfg.LookbackDays)
	}

	trades, err := s.broker.History(ctx, token, accountID, start, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	positions, err := s.broker.Portfolio(ctx, token, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	inserted, err := s.persist(ctx, trades, positions, overallStartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	result := &SyncResult{
		FetchedCount:  len(trades),
		InsertedCount: inserted,
		PositionCount: len(positions),
		SyncedAt:      now,
	}

	if _, err := s.reportService.Recompute(ctx); err != nil && !errors.Is(err, ErrRecomputeInFlight) {
		return nil, err
	}

	logger.L.Info("Broker sync END",
		"fetched", result.FetchedCount,
		"inserted", result.InsertedCount,
		"positions", result.PositionCount,
		"duration", time.Since(overallStartTime))
	return result, nil
}

// persist writes the fetched trades and the current portfolio in one
// transaction. Trades already present (by broker trade id) are skipped so a
// re-sync of an overlapping window is harmless.
func (s *syncServiceImpl) persist(ctx context.Context, trades []models.RawTrade, positions []models.PortfolioPosition, startedAt time.Time) (int, error) {
	dbTx, err := database.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO raw_trades
		(trade_id, tx_type, tx_subtype, description, symbol, quantity, net_amount, executed_at, source, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	insertedCount := 0
	for _, t := range trades {
		_, err := stmt.Exec(
			t.TradeID, t.Type, t.SubType, t.Description, t.Symbol,
			t.Quantity, t.NetAmount, t.Timestamp, t.Source, t.RawJSON,
		)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping already-synced trade", "trade_id", t.TradeID)
				continue
			}
			return 0, fmt.Errorf("error inserting trade (id %s): %w", t.TradeID, err)
		}
		insertedCount++
	}

	// The portfolio table mirrors the broker's current view, so it is
	// replaced wholesale on every sync.
	if _, err := dbTx.Exec(`DELETE FROM portfolio_positions`); err != nil {
		return 0, fmt.Errorf("error clearing portfolio positions: %w", err)
	}
	for _, p := range positions {
		if _, err := dbTx.Exec(
			`INSERT INTO portfolio_positions (symbol, is_option) VALUES (?, ?)`,
			p.Symbol, p.IsOption,
		); err != nil {
			return 0, fmt.Errorf("error inserting portfolio position %s: %w", p.Symbol, err)
		}
	}

	if _, err := dbTx.Exec(`
		INSERT INTO sync_history (started_at, finished_at, fetched_count, inserted_count, duplicate_count, error)
		VALUES (?, ?, ?, ?, ?, '')`,
		startedAt, s.now(), len(trades), insertedCount, len(trades)-insertedCount,
	); err != nil {
		return 0, fmt.Errorf("failed to record sync in history: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing sync transaction: %w", err)
	}
	return insertedCount, nil
}

func (s *syncServiceImpl) Reset(ctx context.Context) error {
	dbTx, err := database.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	for _, table := range []string{"raw_trades", "portfolio_positions", "sync_history", "report_runs"} {
		if _, err := dbTx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("error clearing %s: %w", table, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing reset: %w", err)
	}

	logger.L.Info("All persisted broker data cleared")
	if _, err := s.reportService.Recompute(ctx); err != nil && !errors.Is(err, ErrRecomputeInFlight) {
		return err
	}
	return nil
}
