package tagging

import "time"

// AttemptStatus is the outcome of an injection attempt
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
	// AttemptSkipped records the idempotency short-circuit: another strategy holds
	// the claim or the handle is installed. It is not an error.
	AttemptSkipped AttemptStatus = "skipped"
)

// IsTerminal reports whether the status is final for the current try
func (s AttemptStatus) IsTerminal() bool {
	return s != AttemptPending
}

// InjectionAttempt records one strategy's progress during a mount
type InjectionAttempt struct {
	Strategy   StrategyKind  `json:"strategy"`
	Status     AttemptStatus `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	RetryCount int           `json:"retry_count"`
	Err        error         `json:"-"`
}

// NewInjectionAttempt creates a pending attempt
func NewInjectionAttempt(kind StrategyKind, now time.Time) *InjectionAttempt {
	return &InjectionAttempt{
		Strategy:  kind,
		Status:    AttemptPending,
		Timestamp: now,
	}
}

// Retry starts another try of the same strategy
func (a *InjectionAttempt) Retry(now time.Time) {
	a.RetryCount++
	a.Status = AttemptPending
	a.Timestamp = now
	a.Err = nil
}

// Succeed marks the attempt as succeeded
func (a *InjectionAttempt) Succeed(now time.Time) {
	a.Status = AttemptSucceeded
	a.Timestamp = now
	a.Err = nil
}

// Fail marks the attempt as failed
func (a *InjectionAttempt) Fail(now time.Time, err error) {
	a.Status = AttemptFailed
	a.Timestamp = now
	a.Err = err
}

// Skip marks the attempt as short-circuited. A succeeded attempt stays succeeded.
func (a *InjectionAttempt) Skip(now time.Time, reason error) {
	if a.Status == AttemptSucceeded {
		return
	}
	a.Status = AttemptSkipped
	a.Timestamp = now
	a.Err = reason
}

// ErrorMessage returns the error text, or empty when there is none
func (a InjectionAttempt) ErrorMessage() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}
