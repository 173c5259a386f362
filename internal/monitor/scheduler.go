package monitor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the
// latter case
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock WaitFunc
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Scheduler repeats a cycle until its context is cancelled. A successful
// cycle is followed by Interval, a failed one by RetryDelay.
type Scheduler struct {
	Interval   time.Duration
	RetryDelay time.Duration
	Wait       WaitFunc
	log        *log.Entry
}

// NewScheduler creates a scheduler using the wall clock
func NewScheduler(interval, retryDelay time.Duration, logger *log.Entry) *Scheduler {
	return &Scheduler{
		Interval:   interval,
		RetryDelay: retryDelay,
		Wait:       Sleep,
		log:        logger,
	}
}

// Run loops until ctx is cancelled. Cycle errors never stop the loop.
// Returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context, cycle func(ctx context.Context) error) error {
	wait := s.Wait
	if wait == nil {
		wait = Sleep
	}

	for {
		delay := s.Interval
		if err := cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			delay = s.RetryDelay
			s.log.WithError(err).WithField("retry_in", delay.String()).Error("Monitor cycle failed")
		} else {
			s.log.WithField("next_in", delay.String()).Debug("Waiting for next cycle")
		}

		if err := wait(ctx, delay); err != nil {
			break
		}
	}

	s.log.Info("Scheduler stopped")
	return nil
}
