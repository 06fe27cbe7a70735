package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// TokenCleaner is the storage call the sweeper runs.
type TokenCleaner interface {
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs periodic maintenance. Expired tokens are already rejected at
// consumption time; sweeping only keeps the slots from lingering.
type Scheduler struct {
	scheduler gocron.Scheduler
	cleaner   TokenCleaner
	timeout   time.Duration
	now       func() time.Time
}

func NewScheduler(cleaner TokenCleaner, interval, timeout time.Duration) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		scheduler: scheduler,
		cleaner:   cleaner,
		timeout:   timeout,
		now:       time.Now,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweepExpiredTokens),
		gocron.WithName("expired-token-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register token sweep job: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	zap.L().Info("starting background job scheduler")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	zap.L().Info("stopping background job scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) sweepExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cleared, err := s.cleaner.ClearExpiredTokens(ctx, s.now())
	if err != nil {
		zap.L().Error("expired token sweep failed", zap.Error(err))
		return
	}
	if cleared > 0 {
		zap.L().Info("cleared expired tokens", zap.Int64("slots", cleared))
	}
}
