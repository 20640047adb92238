package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"petamigos/contentguard/internal/metrics"
)

type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	pending PendingCounter
	log     zerolog.Logger
}

func NewScheduler(pending PendingCounter, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:    c,
		pending: pending,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if s.pending == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 * * * * *", s.refreshPending); err != nil {
		return err
	}

	s.refreshPending()
	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) refreshPending() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := s.pending.CountPending(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("count pending reviews failed")
		return
	}
	metrics.PendingReviews.Set(float64(count))
}
