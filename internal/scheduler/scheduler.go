package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"confbooking/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// DefaultCompletionSpec runs the completion sweep every five minutes.
const DefaultCompletionSpec = "0 */5 * * * *"

// Sweeper completes confirmed bookings that have ended.
type Sweeper interface {
	CompleteExpired(ctx context.Context) (int, error)
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     *slog.Logger
}

// New registers the completion sweep on spec (six fields, with seconds).
func New(sweeper Sweeper, spec string, loc *time.Location, timeout time.Duration) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultCompletionSpec
	}
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
		),
		sweeper: sweeper,
		timeout: timeout,
		log:     logger.WithService("scheduler"),
	}

	if _, err := s.cron.AddFunc(spec, s.runWithRecovery); err != nil {
		return nil, fmt.Errorf("register completion sweep %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.log.Info("starting cron scheduler", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("cron scheduler stopped")
}

// RunOnce runs the completion sweep immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.sweeper.CompleteExpired(ctx)
}

func (s *Scheduler) runWithRecovery() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("completion sweep panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	start := time.Now()
	n, err := s.RunOnce(context.Background())
	if err != nil {
		s.log.Error("completion sweep failed", "error", err)
		return
	}
	s.log.Info("completion sweep finished", "completed", n, "duration", time.Since(start))
}
