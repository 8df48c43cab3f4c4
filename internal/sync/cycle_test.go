package sync

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"leadsync-engine/internal/config"
	"leadsync-engine/internal/crm"
	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/store"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.App.DefaultRegion = "US"
	cfg.Source.PageLimit = 500
	cfg.Sync.IntervalMinutes = 10
	cfg.Sync.BatchSize = 10
	cfg.Sync.MaxRetries = 3
	cfg.Sync.RetryDelayMinutes = 30
	return cfg
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := store.Open(filepath.Join(t.TempDir(), "sync_test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := store.Migrate(d.Pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d.Pool
}

type fakeFetcher struct {
	raw    []domain.RawLead
	err    error
	sinces []time.Time
}

func (f *fakeFetcher) Fetch(ctx context.Context, since time.Time, lastID int64, limit int) ([]domain.RawLead, error) {
	f.sinces = append(f.sinces, since)
	return f.raw, f.err
}

type fakeDeliverer struct {
	results map[string]crm.Result
	calls   []crm.Contact
}

func (f *fakeDeliverer) Deliver(ctx context.Context, ct crm.Contact) crm.Result {
	f.calls = append(f.calls, ct)
	if res, ok := f.results[ct.Email]; ok {
		return res
	}
	return crm.Result{Success: true, ContactID: "C-" + ct.Email}
}

func TestRunCycleEndToEnd(t *testing.T) {
	db := openTestDB(t)
	fetcher := &fakeFetcher{raw: []domain.RawLead{
		{
			ID:         42,
			Email:      "  A@Test.com ",
			Phone:      "+1 650 253 0000",
			FirstName:  "Ada",
			LastName:   "Lovelace",
			SignupDate: "2025-06-01 10:30:00",
			Source:     "wordpress",
		},
	}}
	deliverer := &fakeDeliverer{results: map[string]crm.Result{
		"a@test.com": {Success: true, ContactID: "C-42", StatusCode: 201},
	}}
	svc := New(testConfig(), db, fetcher, deliverer)

	stats, err := svc.RunCycle(context.Background(), false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Fetched != 1 || stats.Inserted != 1 || stats.Delivered != 1 {
		t.Fatalf("stats = %+v, want fetched=1 inserted=1 delivered=1", stats)
	}

	lead, err := store.GetLeadByEmail(context.Background(), db, "a@test.com")
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if !lead.Delivered || lead.CRMContactID != "C-42" {
		t.Fatalf("lead not marked delivered: %+v", lead)
	}
	if lead.Phone != "+16502530000" || !lead.PhoneValid {
		t.Fatalf("phone not normalized: %q valid=%v", lead.Phone, lead.PhoneValid)
	}
	if lead.SourceID != "42" {
		t.Fatalf("source_id = %q, want 42", lead.SourceID)
	}

	att, err := store.LatestAttempt(context.Background(), db, lead.ID)
	if err != nil || att == nil {
		t.Fatalf("latest attempt: %v %v", att, err)
	}
	if att.State != domain.StateSuccess || att.CRMContactID != "C-42" {
		t.Fatalf("attempt = %+v, want success C-42", att)
	}

	// the overlapping second cycle resends the same record; the upsert
	// absorbs it and the delivered lead is not pushed again
	calls := len(deliverer.calls)
	stats, err = svc.RunCycle(context.Background(), false)
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if stats.Inserted != 0 || stats.Updated != 1 {
		t.Fatalf("second cycle stats = %+v, want inserted=0 updated=1", stats)
	}
	if len(deliverer.calls) != calls {
		t.Fatalf("delivered lead was pushed again")
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM leads;`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("lead count = %d (%v), want 1", n, err)
	}
}

func TestRunCycleWatermarkOverlap(t *testing.T) {
	db := openTestDB(t)
	fetcher := &fakeFetcher{raw: []domain.RawLead{
		{ID: 7, Email: "first@example.com", SignupDate: "2025-06-01 12:00:00"},
	}}
	svc := New(testConfig(), db, fetcher, &fakeDeliverer{})

	if _, err := svc.RunCycle(context.Background(), false); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !fetcher.sinces[0].IsZero() {
		t.Fatalf("first cycle since = %v, want zero (full history)", fetcher.sinces[0])
	}

	if _, err := svc.RunCycle(context.Background(), false); err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	signup, _ := time.Parse(store.TimeFormat, "2025-06-01 12:00:00")
	want := signup.Add(-10 * time.Minute)
	if !fetcher.sinces[1].Equal(want) {
		t.Fatalf("second cycle since = %v, want watermark minus interval %v", fetcher.sinces[1], want)
	}

	// --full ignores the watermark
	if _, err := svc.RunCycle(context.Background(), true); err != nil {
		t.Fatalf("full RunCycle: %v", err)
	}
	if !fetcher.sinces[2].IsZero() {
		t.Fatalf("full cycle since = %v, want zero", fetcher.sinces[2])
	}
}

func TestRunCycleCountsUnusableRecords(t *testing.T) {
	db := openTestDB(t)
	fetcher := &fakeFetcher{raw: []domain.RawLead{
		{ID: 1, Email: "   ", SignupDate: "2025-06-01 12:00:00"},
		{ID: 2, Email: "ok@example.com", SignupDate: "2025-06-01 12:05:00"},
	}}
	svc := New(testConfig(), db, fetcher, &fakeDeliverer{})

	stats, err := svc.RunCycle(context.Background(), false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Errors != 1 || stats.Inserted != 1 {
		t.Fatalf("stats = %+v, want errors=1 inserted=1", stats)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM leads;`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("lead count = %d (%v), want 1", n, err)
	}
}

func TestRunCycleFetchErrorContinues(t *testing.T) {
	db := openTestDB(t)
	fetcher := &fakeFetcher{err: errors.New("connect refused")}
	svc := New(testConfig(), db, fetcher, &fakeDeliverer{})

	stats, err := svc.RunCycle(context.Background(), false)
	if err != nil {
		t.Fatalf("fetch failure should not abort the cycle: %v", err)
	}
	if stats.Fetched != 0 {
		t.Fatalf("fetched = %d, want 0", stats.Fetched)
	}

	var status string
	if err := db.QueryRow(`SELECT status FROM sync_log ORDER BY id DESC LIMIT 1;`).Scan(&status); err != nil {
		t.Fatalf("sync_log: %v", err)
	}
	if status != "completed" {
		t.Fatalf("cycle status = %q, want completed", status)
	}
}

func TestRunCycleFailedDeliveryGoesToLedger(t *testing.T) {
	db := openTestDB(t)
	fetcher := &fakeFetcher{raw: []domain.RawLead{
		{ID: 3, Email: "flaky@example.com", SignupDate: "2025-06-01 12:00:00"},
	}}
	deliverer := &fakeDeliverer{results: map[string]crm.Result{
		"flaky@example.com": {
			Success: false, Kind: crm.KindAPI, StatusCode: 500,
			ErrorMessage: "internal server error",
		},
	}}
	svc := New(testConfig(), db, fetcher, deliverer)

	stats, err := svc.RunCycle(context.Background(), false)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Failed != 1 || stats.Delivered != 0 {
		t.Fatalf("stats = %+v, want failed=1 delivered=0", stats)
	}

	lead, err := store.GetLeadByEmail(context.Background(), db, "flaky@example.com")
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if lead.Delivered {
		t.Fatal("failed lead must not be marked delivered")
	}
	att, err := store.LatestAttempt(context.Background(), db, lead.ID)
	if err != nil || att == nil {
		t.Fatalf("latest attempt: %v %v", att, err)
	}
	if att.State != domain.StateFailed || att.RetryCount != 1 || att.NextRetryAt == nil {
		t.Fatalf("attempt = %+v, want failed retry_count=1 with backoff", att)
	}
}

func TestRetryFailedRequeuesAndDelivers(t *testing.T) {
	db := openTestDB(t)
	fetcher := &fakeFetcher{raw: []domain.RawLead{
		{ID: 4, Email: "retry@example.com", SignupDate: "2025-06-01 12:00:00"},
	}}
	deliverer := &fakeDeliverer{results: map[string]crm.Result{
		"retry@example.com": {Success: false, Kind: crm.KindTransport, ErrorMessage: "timeout"},
	}}
	svc := New(testConfig(), db, fetcher, deliverer)

	if _, err := svc.RunCycle(context.Background(), false); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	// the destination recovers
	deliverer.results["retry@example.com"] = crm.Result{Success: true, ContactID: "C-4", StatusCode: 201}

	requeued, delivered, failed, err := svc.RetryFailed(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if requeued != 1 || delivered != 1 || failed != 0 {
		t.Fatalf("requeued=%d delivered=%d failed=%d, want 1/1/0", requeued, delivered, failed)
	}

	lead, err := store.GetLeadByEmail(context.Background(), db, "retry@example.com")
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if !lead.Delivered || lead.CRMContactID != "C-4" {
		t.Fatalf("lead after retry = %+v, want delivered C-4", lead)
	}
}
