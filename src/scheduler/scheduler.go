// backend/src/scheduler/scheduler.go
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/username/tradefolio/backend/src/logger"
)

// Job represents a scheduled background job.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages periodic background jobs on top of cron.
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.L.Info("Scheduler started")
}

// Stop blocks until running jobs finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.L.Info("Scheduler stopped")
}

// AddJob registers a job on a cron schedule ("@every 5m", "@hourly",
// "0 9 * * MON-FRI", ...). Failures are logged, never fatal: the next tick
// retries.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		logger.L.Debug("Running scheduled job", "job", job.Name())
		if err := job.Run(); err != nil {
			logger.L.Error("Scheduled job failed", "job", job.Name(), "error", err)
			return
		}
		logger.L.Debug("Scheduled job completed", "job", job.Name())
	})
	if err != nil {
		return err
	}
	logger.L.Info("Job registered", "job", job.Name(), "schedule", schedule)
	return nil
}
