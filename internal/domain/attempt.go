package domain

import "time"

// AttemptState is the delivery state machine for a lead:
//
//	pending → success (terminal)
//	pending → failed → retry → success/failed
//
// failed is terminal once RetryCount reaches the configured maximum; a sweep
// can move it back to retry while budget remains.
type AttemptState string

const (
	StatePending AttemptState = "pending"
	StateSuccess AttemptState = "success"
	StateFailed  AttemptState = "failed"
	StateRetry   AttemptState = "retry"
)

// DeliveryAttempt is one row of the delivery ledger. Attempts are appended,
// never rewritten; the only mutation allowed afterwards is the failed → retry
// re-queue.
type DeliveryAttempt struct {
	ID             int64
	LeadID         int64
	Email          string
	AttemptedAt    time.Time
	RequestBody    string
	ResponseStatus int
	ResponseBody   string
	State          AttemptState
	ErrorMessage   string
	RetryCount     int
	NextRetryAt    *time.Time
	CRMContactID   string
}

// Terminal reports whether no further automatic attempts are scheduled.
func (s AttemptState) Terminal(retryCount, maxRetries int) bool {
	if s == StateSuccess {
		return true
	}
	return s == StateFailed && retryCount >= maxRetries
}

// EligibleForDelivery decides whether a lead's latest attempt (nil means never
// attempted) permits another delivery now.
func EligibleForDelivery(latest *DeliveryAttempt, maxRetries int, now time.Time) bool {
	if latest == nil {
		return true
	}
	switch latest.State {
	case StateFailed, StateRetry:
		if latest.RetryCount >= maxRetries {
			return false
		}
		if latest.NextRetryAt != nil && latest.NextRetryAt.After(now) {
			return false
		}
		return true
	default:
		return false
	}
}
