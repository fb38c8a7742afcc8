// backend/src/services/refresh_job.go
package services

import (
	"context"
	"errors"
	"time"
)

// RefreshJob is the scheduled broker sync. It satisfies the scheduler's Job
// interface.
type RefreshJob struct {
	syncService SyncService
	timeout     time.Duration
}

func NewRefreshJob(syncService SyncService) *RefreshJob {
	return &RefreshJob{syncService: syncService, timeout: 2 * time.Minute}
}

func (j *RefreshJob) Name() string { return "broker-refresh" }

func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.syncService.Sync(ctx)
	// A manual refresh racing the schedule is not a failure.
	if errors.Is(err, ErrRecomputeInFlight) {
		return nil
	}
	return err
}
