// Package jobs runs periodic background work on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	c       *cron.Cron
	logr    *zap.Logger
	timeout time.Duration
}

// NewScheduler returns a stopped scheduler. Each run gets its own context
// bounded by timeout; overlapping runs of the same job are skipped.
func NewScheduler(logr *zap.Logger, timeout time.Duration) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &Scheduler{c: c, logr: logr, timeout: timeout}
}

// Add registers job under a cron spec such as "@every 1m".
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.c.AddFunc(spec, func() { s.run(job) })
	return err
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logr.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		return
	}
	s.logr.Debug("job done", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

func (s *Scheduler) Entries() int { return len(s.c.Entries()) }
