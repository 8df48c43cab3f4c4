package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"leadsync-engine/internal/domain"
)

// AttemptInput is what the orchestrator hands the ledger after one delivery
// call. The ledger itself derives retry_count and next_retry_at.
type AttemptInput struct {
	State          domain.AttemptState // success or failed
	AttemptedAt    time.Time
	RequestBody    string
	ResponseStatus int
	ResponseBody   string
	ErrorMessage   string
	CRMContactID   string
	RetryDelay     time.Duration // backoff applied on failure
}

// RecordAttempt appends one ledger row and updates the lead's delivery
// bookkeeping: on success the lead is marked delivered with the destination
// id; on failure the attempt counter grows and the next eligible time is
// scheduled. Rows are only touched again by MarkForRetry's re-queue.
func RecordAttempt(ctx context.Context, db *sql.DB, leadID int64, email string, in AttemptInput) error {
	var prevRetries sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT MAX(retry_count) FROM delivery_log WHERE lead_id = ?;`, leadID,
	).Scan(&prevRetries)
	if err != nil {
		return fmt.Errorf("ledger retry count: %w", err)
	}

	retryCount := int(prevRetries.Int64)
	var nextRetry any
	if in.State != domain.StateSuccess {
		retryCount++
		nextRetry = fmtTime(in.AttemptedAt.Add(in.RetryDelay))
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO delivery_log (
  lead_id, email, attempted_at, request_body, response_status, response_body,
  status, error_message, retry_count, next_retry_at, crm_contact_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		leadID, email, fmtTime(in.AttemptedAt), in.RequestBody,
		in.ResponseStatus, in.ResponseBody, string(in.State), in.ErrorMessage,
		retryCount, nextRetry, in.CRMContactID,
	)
	if err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}

	if in.State == domain.StateSuccess && in.CRMContactID != "" {
		_, err = db.ExecContext(ctx, `
UPDATE leads SET
  delivered = 1,
  delivered_at = ?,
  crm_contact_id = ?,
  delivery_attempts = delivery_attempts + 1
WHERE id = ?;`, fmtTime(in.AttemptedAt), in.CRMContactID, leadID)
	} else {
		_, err = db.ExecContext(ctx,
			`UPDATE leads SET delivery_attempts = delivery_attempts + 1 WHERE id = ?;`, leadID)
	}
	if err != nil {
		return fmt.Errorf("ledger lead update: %w", err)
	}
	return nil
}

// LatestAttempt returns the newest ledger row for a lead, or nil.
func LatestAttempt(ctx context.Context, db *sql.DB, leadID int64) (*domain.DeliveryAttempt, error) {
	row := db.QueryRowContext(ctx, `
SELECT id, lead_id, email, attempted_at, request_body, response_status,
       response_body, status, error_message, retry_count, next_retry_at, crm_contact_id
FROM delivery_log
WHERE lead_id = ?
ORDER BY id DESC
LIMIT 1;`, leadID)

	att, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return att, nil
}

func scanAttempt(row interface{ Scan(...any) error }) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	var attemptedAt, state string
	var respStatus sql.NullInt64
	var nextRetry sql.NullString
	err := row.Scan(
		&a.ID, &a.LeadID, &a.Email, &attemptedAt, &a.RequestBody, &respStatus,
		&a.ResponseBody, &state, &a.ErrorMessage, &a.RetryCount, &nextRetry, &a.CRMContactID,
	)
	if err != nil {
		return nil, err
	}
	a.AttemptedAt = parseTime(attemptedAt)
	a.State = domain.AttemptState(state)
	a.ResponseStatus = int(respStatus.Int64)
	if nextRetry.Valid {
		t := parseTime(nextRetry.String)
		a.NextRetryAt = &t
	}
	return &a, nil
}

type eligibleCandidate struct {
	lead   domain.Lead
	latest *domain.DeliveryAttempt
}

// SelectEligible returns up to batch leads due for delivery: pending retries
// first, then never-attempted leads by quality (desc) and signup time (asc).
// The actual eligibility decision is the pure domain predicate; SQL only
// narrows to undelivered leads and their latest attempt.
func SelectEligible(ctx context.Context, db *sql.DB, maxRetries, batch int, now time.Time) ([]domain.Lead, error) {
	rows, err := db.QueryContext(ctx, `
SELECT leads.id, leads.email, leads.phone, leads.phone_country, leads.phone_valid,
       leads.first_name, leads.last_name, leads.email_valid, leads.email_domain,
       leads.quality_score, leads.source, leads.source_id,
       leads.signup_at, leads.created_at, leads.updated_at,
       leads.delivered, leads.delivered_at, leads.crm_contact_id, leads.delivery_attempts,
       a.status, a.retry_count, a.next_retry_at
FROM leads
LEFT JOIN delivery_log a
  ON a.lead_id = leads.id
 AND a.id = (SELECT MAX(id) FROM delivery_log WHERE lead_id = leads.id)
WHERE leads.delivered = 0;`)
	if err != nil {
		return nil, fmt.Errorf("select eligible: %w", err)
	}
	defer rows.Close()

	var candidates []eligibleCandidate
	for rows.Next() {
		var l domain.Lead
		var signupAt, createdAt, updatedAt string
		var deliveredAt, state, nextRetry sql.NullString
		var retryCount sql.NullInt64

		if err := rows.Scan(
			&l.ID, &l.Email, &l.Phone, &l.PhoneCountry, &l.PhoneValid,
			&l.FirstName, &l.LastName, &l.EmailValid, &l.EmailDomain,
			&l.QualityScore, &l.Source, &l.SourceID,
			&signupAt, &createdAt, &updatedAt,
			&l.Delivered, &deliveredAt, &l.CRMContactID, &l.DeliveryAttempts,
			&state, &retryCount, &nextRetry,
		); err != nil {
			return nil, err
		}
		l.SignupAt = parseTime(signupAt)
		l.CreatedAt = parseTime(createdAt)
		l.UpdatedAt = parseTime(updatedAt)

		var latest *domain.DeliveryAttempt
		if state.Valid {
			latest = &domain.DeliveryAttempt{
				State:      domain.AttemptState(state.String),
				RetryCount: int(retryCount.Int64),
			}
			if nextRetry.Valid {
				t := parseTime(nextRetry.String)
				latest.NextRetryAt = &t
			}
		}

		if !domain.EligibleForDelivery(latest, maxRetries, now) {
			continue
		}
		candidates = append(candidates, eligibleCandidate{lead: l, latest: latest})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri := candidates[i].latest != nil && candidates[i].latest.State == domain.StateRetry
		rj := candidates[j].latest != nil && candidates[j].latest.State == domain.StateRetry
		if ri != rj {
			return ri
		}
		if candidates[i].lead.QualityScore != candidates[j].lead.QualityScore {
			return candidates[i].lead.QualityScore > candidates[j].lead.QualityScore
		}
		return candidates[i].lead.SignupAt.Before(candidates[j].lead.SignupAt)
	})

	if batch > 0 && len(candidates) > batch {
		candidates = candidates[:batch]
	}

	out := make([]domain.Lead, len(candidates))
	for i, c := range candidates {
		out[i] = c.lead
	}
	return out, nil
}

// MarkForRetry re-queues the given day's failed attempts that still have
// retry budget, clearing their backoff so they are picked up immediately.
// Used by the end-of-day sweep and --retry-failed.
func MarkForRetry(ctx context.Context, db *sql.DB, day time.Time, maxRetries int) (int64, error) {
	res, err := db.ExecContext(ctx, `
UPDATE delivery_log SET
  status = ?,
  next_retry_at = NULL
WHERE date(attempted_at) = ?
  AND status = ?
  AND retry_count < ?;`,
		string(domain.StateRetry),
		day.UTC().Format("2006-01-02"), string(domain.StateFailed), maxRetries,
	)
	if err != nil {
		return 0, fmt.Errorf("mark for retry: %w", err)
	}
	return res.RowsAffected()
}

// LedgerStats are the aggregate numbers behind --stats.
type LedgerStats struct {
	LeadsAttempted  int
	Successes       int
	Failures        int
	PendingRetries  int
	LastAttemptAt   time.Time
	SuccessesToday  int
	FailuresToday   int
	UndeliveredLead int
}

func Stats(ctx context.Context, db *sql.DB) (LedgerStats, error) {
	var s LedgerStats
	var last sql.NullString

	err := db.QueryRowContext(ctx, `
SELECT
  COUNT(DISTINCT lead_id),
  SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
  SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
  SUM(CASE WHEN status = 'retry' THEN 1 ELSE 0 END),
  MAX(attempted_at)
FROM delivery_log;`).Scan(
		&s.LeadsAttempted,
		&nullInt{&s.Successes}, &nullInt{&s.Failures}, &nullInt{&s.PendingRetries},
		&last,
	)
	if err != nil {
		return s, fmt.Errorf("ledger stats: %w", err)
	}
	if last.Valid {
		s.LastAttemptAt = parseTime(last.String)
	}

	today := time.Now().UTC().Format("2006-01-02")
	err = db.QueryRowContext(ctx, `
SELECT
  SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
  SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END)
FROM delivery_log
WHERE date(attempted_at) = ?;`, today).Scan(&nullInt{&s.SuccessesToday}, &nullInt{&s.FailuresToday})
	if err != nil {
		return s, fmt.Errorf("ledger stats today: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE delivered = 0;`).Scan(&s.UndeliveredLead)
	if err != nil {
		return s, err
	}
	return s, nil
}

// nullInt scans a SUM() that is NULL on an empty table as zero.
type nullInt struct{ p *int }

func (n *nullInt) Scan(v any) error {
	if v == nil {
		*n.p = 0
		return nil
	}
	switch x := v.(type) {
	case int64:
		*n.p = int(x)
	case float64:
		*n.p = int(x)
	}
	return nil
}
