package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pinger reports whether a dependency is reachable with the current
// configuration.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check probes storage, the lead source, and the CRM concurrently and
// reports each result. It returns an error if any probe failed, so --check
// can exit non-zero.
func Check(ctx context.Context, db *sql.DB, src, dst Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	probe := func(name string, fn func(context.Context) error) func() error {
		return func() error {
			if err := fn(ctx); err != nil {
				log.Printf("[check] %-8s FAIL: %v", name, err)
				return fmt.Errorf("%s: %w", name, err)
			}
			log.Printf("[check] %-8s ok", name)
			return nil
		}
	}

	var g errgroup.Group
	g.Go(probe("database", db.PingContext))
	g.Go(probe("source", src.Ping))
	g.Go(probe("crm", dst.Ping))
	return g.Wait()
}
