package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadsync-engine/internal/domain"
)

// TimeFormat is how timestamps are stored: UTC, sqlite-friendly text that
// compares lexically in datetime() expressions.
const TimeFormat = "2006-01-02 15:04:05"

func fmtTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(TimeFormat, s)
	return t
}

// UpsertLead persists a cleaned lead keyed by email. A lead seen before only
// gets its updated_at touched; contact details and the quality score are
// frozen at first capture so a noisy source can't flap them. A unique-key
// race on insert is a successful no-op. Leads without an identity are
// rejected (ok=false), never persisted.
func UpsertLead(ctx context.Context, db *sql.DB, lead domain.Lead) (ok, isNew bool, id int64, err error) {
	if lead.Email == "" {
		return false, false, 0, nil
	}

	now := fmtTime(time.Now())

	var existingID int64
	err = db.QueryRowContext(ctx, `SELECT id FROM leads WHERE email = ? LIMIT 1;`, lead.Email).Scan(&existingID)
	switch {
	case err == nil:
		if _, uerr := db.ExecContext(ctx, `UPDATE leads SET updated_at = ? WHERE id = ?;`, now, existingID); uerr != nil {
			return false, false, 0, fmt.Errorf("touch lead: %w", uerr)
		}
		return true, false, existingID, nil
	case err != sql.ErrNoRows:
		return false, false, 0, fmt.Errorf("lookup lead: %w", err)
	}

	// INSERT OR IGNORE + changes() so a near-simultaneous insert of the same
	// email is absorbed by the unique index instead of surfacing as an error.
	res, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO leads (
  email, phone, phone_country, phone_valid, first_name, last_name,
  email_valid, email_domain, quality_score, source, source_id,
  signup_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		lead.Email, lead.Phone, lead.PhoneCountry, lead.PhoneValid,
		lead.FirstName, lead.LastName, lead.EmailValid, lead.EmailDomain,
		lead.QualityScore, lead.Source, lead.SourceID,
		fmtTime(lead.SignupAt), now, now,
	)
	if err != nil {
		return false, false, 0, fmt.Errorf("insert lead: %w", err)
	}

	var changes int
	if err := db.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); err != nil {
		return false, false, 0, err
	}
	if changes == 0 {
		// lost the race; the row exists now
		if err := db.QueryRowContext(ctx, `SELECT id FROM leads WHERE email = ? LIMIT 1;`, lead.Email).Scan(&existingID); err != nil {
			return false, false, 0, fmt.Errorf("lookup after race: %w", err)
		}
		return true, false, existingID, nil
	}

	id, _ = res.LastInsertId()
	return true, true, id, nil
}

const leadColumns = `
  id, email, phone, phone_country, phone_valid, first_name, last_name,
  email_valid, email_domain, quality_score, source, source_id,
  signup_at, created_at, updated_at,
  delivered, delivered_at, crm_contact_id, delivery_attempts`

func scanLead(row interface{ Scan(...any) error }) (domain.Lead, error) {
	var l domain.Lead
	var signupAt, createdAt, updatedAt string
	var deliveredAt sql.NullString
	err := row.Scan(
		&l.ID, &l.Email, &l.Phone, &l.PhoneCountry, &l.PhoneValid,
		&l.FirstName, &l.LastName, &l.EmailValid, &l.EmailDomain,
		&l.QualityScore, &l.Source, &l.SourceID,
		&signupAt, &createdAt, &updatedAt,
		&l.Delivered, &deliveredAt, &l.CRMContactID, &l.DeliveryAttempts,
	)
	if err != nil {
		return l, err
	}
	l.SignupAt = parseTime(signupAt)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	if deliveredAt.Valid {
		t := parseTime(deliveredAt.String)
		l.DeliveredAt = &t
	}
	return l, nil
}

// GetLeadByEmail returns the lead for an identity, or sql.ErrNoRows.
func GetLeadByEmail(ctx context.Context, db *sql.DB, email string) (domain.Lead, error) {
	row := db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = ? LIMIT 1;`, email)
	return scanLead(row)
}

// Watermark is the furthest point already ingested for a source: the next
// fetch window starts here (minus the overlap buffer).
type Watermark struct {
	SignupAt time.Time
	LastID   int64
}

// LastSyncInfo derives the watermark from the stored leads themselves, so it
// survives restarts and never runs ahead of what was actually persisted.
// An empty source means "any source".
func LastSyncInfo(ctx context.Context, db *sql.DB, source string) (Watermark, error) {
	var wm Watermark
	var maxSignup sql.NullString
	var maxID sql.NullInt64

	err := db.QueryRowContext(ctx, `
SELECT MAX(signup_at), MAX(CAST(source_id AS INTEGER))
FROM leads
WHERE (? = '' OR source = ?);`, source, source).Scan(&maxSignup, &maxID)
	if err != nil {
		return wm, fmt.Errorf("last sync info: %w", err)
	}

	if maxSignup.Valid {
		wm.SignupAt = parseTime(maxSignup.String)
	}
	if maxID.Valid {
		wm.LastID = maxID.Int64
	}
	return wm, nil
}

// CountLeads is used by --stats.
func CountLeads(ctx context.Context, db *sql.DB, deliveredOnly bool) (int, error) {
	q := `SELECT COUNT(*) FROM leads;`
	if deliveredOnly {
		q = `SELECT COUNT(*) FROM leads WHERE delivered = 1;`
	}
	var n int
	err := db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}
