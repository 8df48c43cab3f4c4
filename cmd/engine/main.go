package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"leadsync-engine/internal/config"
	"leadsync-engine/internal/crm"
	"leadsync-engine/internal/secrets"
	"leadsync-engine/internal/source"
	"leadsync-engine/internal/store"
	"leadsync-engine/internal/sync"
)

func main() {
	var (
		dataDir    = flag.String("data-dir", "", "data directory (default $LEADSYNC_DATA_DIR or .)")
		cfgPath    = flag.String("config", "", "config file path (default <data-dir>/config.yml)")
		once       = flag.Bool("once", false, "run one sync cycle and exit")
		continuous = flag.Bool("continuous", true, "run cycles on the configured interval until interrupted")
		interval   = flag.Int("interval", 0, "override sync.interval_minutes")
		full       = flag.Bool("full", false, "ignore the watermark and fetch the full history")
		deliver    = flag.Int("deliver", 0, "deliver up to n eligible leads without fetching, then exit")
		retry      = flag.String("retry-failed", "", "re-queue a day's failed deliveries (YYYY-MM-DD or 'today') and push them, then exit")
		stats      = flag.Bool("stats", false, "print sync and delivery statistics, then exit")
		check      = flag.Bool("check", false, "probe database, source and CRM connectivity, then exit")
		srcSecret  = flag.String("set-source-password", "", "store the source password in the OS keychain and exit")
		crmSecret  = flag.String("set-crm-token", "", "store the CRM access token in the OS keychain and exit")
	)
	flag.Parse()

	if *dataDir == "" {
		*dataDir = os.Getenv("LEADSYNC_DATA_DIR")
	}
	if *dataDir == "" {
		*dataDir = "."
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	if *cfgPath == "" {
		p, err := config.EnsureUserConfig(*dataDir)
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", *cfgPath, err)
	}
	config.OverlayEnv(&cfg)
	if *interval > 0 {
		cfg.Sync.IntervalMinutes = *interval
	}

	cfg, v := config.NormalizeAndValidate(cfg)
	for _, w := range v.Warnings {
		log.Printf("[config] warning: %s", w)
	}

	// keychain writes only need the account names, not a working setup
	if *srcSecret != "" || *crmSecret != "" {
		if *srcSecret != "" {
			if err := secrets.Set(secrets.SourceAccount(cfg), *srcSecret); err != nil {
				log.Fatalf("store source password: %v", err)
			}
			log.Printf("[secrets] source password stored for %s", cfg.Source.Username)
		}
		if *crmSecret != "" {
			if err := secrets.Set(secrets.CRMAccount(cfg), *crmSecret); err != nil {
				log.Fatalf("store CRM token: %v", err)
			}
			log.Printf("[secrets] CRM token stored for location %s", cfg.CRM.LocationID)
		}
		return
	}

	if !v.OK() {
		for _, e := range v.Errors {
			log.Printf("[config] error: %s", e)
		}
		log.Fatalf("config invalid, edit %s", *cfgPath)
	}
	if err := secrets.ResolveCredentials(&cfg); err != nil {
		log.Fatal(err)
	}

	d, err := store.Open(filepath.Join(*dataDir, "leads.db"))
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer d.Close()
	if err := store.Migrate(d.Pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	src := source.New(cfg.Source.BaseURL, cfg.Source.Username, cfg.Source.Password)
	dst := crm.New(cfg.CRM.BaseURL, cfg.CRM.AccessToken, cfg.CRM.LocationID, cfg.CRM.APIVersion, cfg.Sync.DeliveryPerSecond)
	svc := sync.New(cfg, d.Pool, src, dst)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *check:
		if err := sync.Check(ctx, d.Pool, src, dst); err != nil {
			os.Exit(1)
		}
		return

	case *stats:
		if err := printStats(ctx, d); err != nil {
			log.Fatal(err)
		}
		return
	}

	// every remaining mode writes; refuse to run next to another instance
	lock := flock.New(filepath.Join(*dataDir, "leadsync.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("acquire lock: %v", err)
	}
	if !locked {
		log.Fatalf("another instance holds %s", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	switch {
	case *retry != "":
		day := time.Now()
		if *retry != "today" {
			d, err := time.Parse("2006-01-02", *retry)
			if err != nil {
				log.Fatalf("--retry-failed wants YYYY-MM-DD or 'today', got %q", *retry)
			}
			day = d
		}
		requeued, delivered, failed, err := svc.RetryFailed(ctx, day)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("[main] retry pass: requeued=%d delivered=%d failed=%d", requeued, delivered, failed)

	case *deliver > 0:
		delivered, failed, err := svc.DeliverBatch(ctx, *deliver)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("[main] delivery pass: delivered=%d failed=%d", delivered, failed)

	case *once || *full:
		if _, err := svc.RunCycle(ctx, *full); err != nil {
			log.Fatal(err)
		}

	case *continuous:
		svc.RunContinuous(ctx)
	}
}

func printStats(ctx context.Context, d *store.DB) error {
	total, err := store.CountLeads(ctx, d.Pool, false)
	if err != nil {
		return err
	}
	delivered, err := store.CountLeads(ctx, d.Pool, true)
	if err != nil {
		return err
	}
	s, err := store.Stats(ctx, d.Pool)
	if err != nil {
		return err
	}

	fmt.Printf("leads:            %d (%d delivered, %d pending)\n", total, delivered, s.UndeliveredLead)
	fmt.Printf("attempted leads:  %d\n", s.LeadsAttempted)
	fmt.Printf("attempts:         %d ok / %d failed / %d queued for retry\n", s.Successes, s.Failures, s.PendingRetries)
	fmt.Printf("today:            %d ok / %d failed\n", s.SuccessesToday, s.FailuresToday)
	if !s.LastAttemptAt.IsZero() {
		fmt.Printf("last attempt:     %s\n", s.LastAttemptAt.Format(time.RFC3339))
	}
	return nil
}
