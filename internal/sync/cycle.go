package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"leadsync-engine/internal/config"
	"leadsync-engine/internal/crm"
	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/store"
)

// Fetcher pulls raw records from the source for a watermark window.
type Fetcher interface {
	Fetch(ctx context.Context, since time.Time, lastID int64, limit int) ([]domain.RawLead, error)
}

// Deliverer pushes one contact to the destination CRM.
type Deliverer interface {
	Deliver(ctx context.Context, ct crm.Contact) crm.Result
}

// Service drives the fetch → clean → store → deliver pipeline. One cycle runs
// to completion before the next; records are processed serially.
type Service struct {
	cfg       config.Config
	db        *sql.DB
	fetcher   Fetcher
	deliverer Deliverer
}

func New(cfg config.Config, db *sql.DB, fetcher Fetcher, deliverer Deliverer) *Service {
	return &Service{cfg: cfg, db: db, fetcher: fetcher, deliverer: deliverer}
}

// RunCycle executes one full sync cycle. Per-record problems are counted and
// skipped; only infrastructure failures (storage unreachable) abort the cycle
// and bubble up, to be retried on the next tick.
func (s *Service) RunCycle(ctx context.Context, full bool) (store.CycleStats, error) {
	started := time.Now()
	var stats store.CycleStats

	cycleID, err := store.StartCycleLog(ctx, s.db)
	if err != nil {
		return stats, fmt.Errorf("start cycle log: %w", err)
	}

	status := "completed"
	errMsg := ""
	defer func() {
		if ferr := store.FinishCycleLog(context.WithoutCancel(ctx), s.db, cycleID, stats, status, errMsg, time.Since(started)); ferr != nil {
			log.Printf("[sync] finish cycle log: %v", ferr)
		}
	}()

	// Step 1: fetch since the watermark, minus one interval of overlap so a
	// slow source can't lose records on the boundary. Duplicates are fine;
	// the upsert absorbs them.
	var since time.Time
	if !full {
		wm, werr := store.LastSyncInfo(ctx, s.db, "")
		if werr != nil {
			status, errMsg = "failed", werr.Error()
			return stats, werr
		}
		if !wm.SignupAt.IsZero() {
			since = wm.SignupAt.Add(-s.cfg.Interval())
		}
	}

	raw, err := s.fetcher.Fetch(ctx, since, 0, s.cfg.Source.PageLimit)
	if err != nil {
		// transient: proceed with zero new records, next tick retries
		log.Printf("[sync] fetch error (continuing with 0 records): %v", err)
		raw = nil
	}
	stats.Fetched = len(raw)

	// Step 2: clean, score, upsert
	now := time.Now().UTC()
	for _, r := range raw {
		if ctx.Err() != nil {
			status, errMsg = "cancelled", ctx.Err().Error()
			return stats, ctx.Err()
		}

		lead := buildLead(r, s.cfg.App.DefaultRegion, now)
		ok, isNew, _, uerr := store.UpsertLead(ctx, s.db, lead)
		switch {
		case uerr != nil:
			log.Printf("[sync] upsert error email=%q: %v", lead.Email, uerr)
			stats.Errors++
		case !ok:
			log.Printf("[sync] skipping record with no usable identity (source_id=%q)", lead.SourceID)
			stats.Errors++
		case isNew:
			stats.Inserted++
		default:
			stats.Updated++
		}
	}

	// Step 3: deliver whatever is due, new and retries alike
	delivered, failed, derr := s.deliverEligible(ctx, s.cfg.Sync.BatchSize)
	stats.Delivered = delivered
	stats.Failed = failed
	if derr != nil {
		status, errMsg = "failed", derr.Error()
		return stats, derr
	}

	log.Printf("[sync] cycle done in %s: fetched=%d new=%d updated=%d delivered=%d failed=%d errors=%d",
		time.Since(started).Round(time.Millisecond),
		stats.Fetched, stats.Inserted, stats.Updated, stats.Delivered, stats.Failed, stats.Errors)
	return stats, nil
}
