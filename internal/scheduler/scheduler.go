package scheduler

import (
	"context"
	"log"
	"time"
)

type Task func(ctx context.Context) error

// Loop runs task immediately, then every interval until ctx is cancelled.
// The inter-cycle wait is sliced into one-second checks so shutdown is
// honored within a second instead of blocking a full interval.
func Loop(ctx context.Context, interval time.Duration, name string, task Task) {
	for {
		if err := task(ctx); err != nil {
			log.Printf("[%s] error: %v", name, err)
		}

		if !sleep(ctx, interval) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-t.C:
			if !now.Before(deadline) {
				return true
			}
		}
	}
}
