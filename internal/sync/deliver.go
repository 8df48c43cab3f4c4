package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadsync-engine/internal/crm"
	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/rank"
	"leadsync-engine/internal/store"
)

// deliverEligible pushes up to batch due leads to the CRM, one at a time
// (the client's limiter paces the calls), and records every attempt in the
// ledger. A failed delivery is counted and the batch continues; a ledger
// write failure aborts, since losing attempts would corrupt retry tracking.
func (s *Service) deliverEligible(ctx context.Context, batch int) (delivered, failed int, err error) {
	leads, err := store.SelectEligible(ctx, s.db, s.cfg.Sync.MaxRetries, batch, time.Now().UTC())
	if err != nil {
		return 0, 0, err
	}
	if len(leads) == 0 {
		return 0, 0, nil
	}
	log.Printf("[deliver] %d leads due", len(leads))

	for _, lead := range leads {
		if ctx.Err() != nil {
			return delivered, failed, ctx.Err()
		}

		res := s.deliverer.Deliver(ctx, contactFor(lead))

		state := domain.StateFailed
		if res.Success {
			state = domain.StateSuccess
		}
		in := store.AttemptInput{
			State:          state,
			AttemptedAt:    res.AttemptedAt,
			RequestBody:    res.RequestBody,
			ResponseStatus: res.StatusCode,
			ResponseBody:   res.ResponseBody,
			ErrorMessage:   res.ErrorMessage,
			CRMContactID:   res.ContactID,
			RetryDelay:     s.cfg.RetryDelay(),
		}
		if in.AttemptedAt.IsZero() {
			in.AttemptedAt = time.Now().UTC()
		}
		if rerr := store.RecordAttempt(ctx, s.db, lead.ID, lead.Email, in); rerr != nil {
			return delivered, failed, fmt.Errorf("record attempt for %s: %w", lead.Email, rerr)
		}

		switch {
		case res.Success:
			delivered++
			log.Printf("[deliver] ok email=%s contact=%s", lead.Email, res.ContactID)
		case res.Kind == crm.KindAuth:
			failed++
			// configuration problem, not a transient: make it impossible to miss
			log.Printf("[deliver] AUTH FAILURE email=%s: %s (check crm access token)", lead.Email, res.ErrorMessage)
		default:
			failed++
			log.Printf("[deliver] failed email=%s kind=%s status=%d: %s",
				lead.Email, res.Kind, res.StatusCode, res.ErrorMessage)
		}
	}

	return delivered, failed, nil
}

// DeliverBatch runs one standalone delivery pass without fetching.
func (s *Service) DeliverBatch(ctx context.Context, batch int) (delivered, failed int, err error) {
	if batch <= 0 {
		batch = s.cfg.Sync.BatchSize
	}
	return s.deliverEligible(ctx, batch)
}

// RetryFailed re-queues the day's failed attempts that still have budget and
// delivers them immediately.
func (s *Service) RetryFailed(ctx context.Context, day time.Time) (requeued int64, delivered, failed int, err error) {
	requeued, err = store.MarkForRetry(ctx, s.db, day, s.cfg.Sync.MaxRetries)
	if err != nil {
		return 0, 0, 0, err
	}
	log.Printf("[deliver] swept %d failed attempts into retry", requeued)
	if requeued == 0 {
		return 0, 0, 0, nil
	}
	delivered, failed, err = s.deliverEligible(ctx, int(requeued))
	return requeued, delivered, failed, err
}

func contactFor(lead domain.Lead) crm.Contact {
	return crm.Contact{
		Email:     lead.Email,
		Phone:     lead.Phone,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Tags:      rank.Tags(lead),
		CustomFields: map[string]string{
			"signup_date":   lead.SignupAt.UTC().Format(time.RFC3339),
			"quality_score": fmt.Sprintf("%d", lead.QualityScore),
			"source":        lead.Source,
		},
		Source: "WordPress Lead Form",
	}
}
