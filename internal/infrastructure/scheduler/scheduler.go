package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper is the slice of the application the scheduler drives.
type Sweeper interface {
	SweepOngoing(ctx context.Context) (int, error)
}

// Scheduler periodically replays ongoing sub-loans so accrual and pending
// operations do not wait for the next borrower-triggered request.
type Scheduler struct {
	cron    *cron.Cron
	sweep   Sweeper
	timeout time.Duration
}

func New(sweep Sweeper) *Scheduler {
	return &Scheduler{cron: cron.New(), sweep: sweep, timeout: 5 * time.Minute}
}

// Start registers the sweep under the given cron spec and starts the runner.
// An empty spec disables the scheduler.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.sweep.SweepOngoing(ctx)
	if err != nil {
		log.Printf("scheduler: sweep finished with error after %d sub-loans: %v", n, err)
		return
	}
	log.Printf("scheduler: swept %d sub-loans", n)
}

// Stop halts the runner; in-flight sweeps finish on their own.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
