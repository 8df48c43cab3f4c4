package domain

import (
	"testing"
	"time"
)

func TestAttemptStateTerminal(t *testing.T) {
	tests := []struct {
		name       string
		state      AttemptState
		retryCount int
		maxRetries int
		expected   bool
	}{
		{"success is always terminal", StateSuccess, 0, 3, true},
		{"failed under budget", StateFailed, 1, 3, false},
		{"failed at budget", StateFailed, 3, 3, true},
		{"retry is not terminal", StateRetry, 3, 3, false},
		{"pending is not terminal", StatePending, 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Terminal(tt.retryCount, tt.maxRetries); got != tt.expected {
				t.Errorf("Terminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEligibleForDelivery(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(30 * time.Minute)
	earlier := now.Add(-30 * time.Minute)

	tests := []struct {
		name     string
		latest   *DeliveryAttempt
		expected bool
	}{
		{"never attempted", nil, true},
		{"success is done", &DeliveryAttempt{State: StateSuccess}, false},
		{"failed, budget left, no backoff", &DeliveryAttempt{State: StateFailed, RetryCount: 1}, true},
		{"failed, budget exhausted", &DeliveryAttempt{State: StateFailed, RetryCount: 3}, false},
		{"failed, backoff not elapsed", &DeliveryAttempt{State: StateFailed, RetryCount: 1, NextRetryAt: &later}, false},
		{"failed, backoff elapsed", &DeliveryAttempt{State: StateFailed, RetryCount: 1, NextRetryAt: &earlier}, true},
		{"retry picked up immediately", &DeliveryAttempt{State: StateRetry, RetryCount: 2}, true},
		{"retry but exhausted", &DeliveryAttempt{State: StateRetry, RetryCount: 3}, false},
		{"pending waits for its outcome", &DeliveryAttempt{State: StatePending}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EligibleForDelivery(tt.latest, 3, now); got != tt.expected {
				t.Errorf("EligibleForDelivery() = %v, want %v", got, tt.expected)
			}
		})
	}
}
