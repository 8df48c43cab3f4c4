package sync

import (
	"context"
	"log"
	"time"

	"leadsync-engine/internal/scheduler"
)

// RunContinuous runs cycles on the configured interval until ctx is
// cancelled. Late in the day it also sweeps the day's failures back into the
// retry queue so nothing is left stranded on backoff overnight.
func (s *Service) RunContinuous(ctx context.Context) {
	interval := s.cfg.Interval()
	log.Printf("[sync] continuous mode, interval=%s", interval)

	scheduler.Loop(ctx, interval, "sync", func(ctx context.Context) error {
		if _, err := s.RunCycle(ctx, false); err != nil {
			return err
		}

		now := time.Now()
		if now.Hour() == 23 && now.Minute() < s.cfg.Sync.IntervalMinutes {
			requeued, delivered, failed, err := s.RetryFailed(ctx, now)
			if err != nil {
				return err
			}
			if requeued > 0 {
				log.Printf("[sync] end-of-day sweep: requeued=%d delivered=%d failed=%d",
					requeued, delivered, failed)
			}
		}
		return nil
	})

	log.Printf("[sync] continuous mode stopped")
}
