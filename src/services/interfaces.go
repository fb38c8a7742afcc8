// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/tradefolio/backend/src/models"
)

// Define common service errors
var (
	ErrSyncFailed         = errors.New("broker sync failed")
	ErrRecomputeFailed    = errors.New("report recompute failed")
	ErrRecomputeInFlight  = errors.New("a recompute is already running")
	ErrSnapshotNotReady   = errors.New("no report snapshot has been computed yet")
	ErrNoBrokerConfigured = errors.New("no broker API token configured")
)

// BrokerClient is the surface of the brokerage API the sync service needs.
// Satisfied by publicapi.Client; tests provide a stub.
type BrokerClient interface {
	AccessToken(ctx context.Context) (string, error)
	AccountID(ctx context.Context, token string) (string, error)
	History(ctx context.Context, token, accountID string, start, end time.Time) ([]models.RawTrade, error)
	Portfolio(ctx context.Context, token, accountID string) ([]models.PortfolioPosition, error)
}

// ReportService owns the derived P&L report. It recomputes the full
// snapshot from persisted raw trades and publishes it atomically.
type ReportService interface {
	// Current returns the latest published snapshot, or ErrSnapshotNotReady.
	Current() (*models.ReportSnapshot, error)
	// Recompute rebuilds the snapshot from the database. Concurrent calls
	// coalesce: while one recompute runs, others return ErrRecomputeInFlight.
	Recompute(ctx context.Context) (*models.ReportSnapshot, error)
	// ClosedPositions returns closed positions from the current snapshot,
	// optionally limited to those closed within the last `days` days.
	ClosedPositions(days int) ([]models.ClosedPosition, error)
	// UnknownBasisSales returns sells that could not be matched to any lot.
	UnknownBasisSales() ([]models.UnknownBasis, error)
	InvalidateCache()
}

// SyncService pulls trade history and portfolio state from the broker
// into the local database, then triggers a report recompute.
type SyncService interface {
	// Sync fetches the year-to-date history and current portfolio. New
	// trades are inserted; already-seen trade ids are skipped.
	Sync(ctx context.Context) (*SyncResult, error)
	// Reset clears all persisted trades and the published snapshot.
	Reset(ctx context.Context) error
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	FetchedCount  int       `json:"fetched_count"`
	InsertedCount int       `json:"inserted_count"`
	PositionCount int       `json:"position_count"`
	SyncedAt      time.Time `json:"synced_at"`
}
