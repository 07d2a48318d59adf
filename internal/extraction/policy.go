package extraction

import "time"

// Decision is the outcome of a retry policy evaluation.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy decides whether a failed completion attempt is retried.
// Decide is a pure function of the attempt number and the error kind, so
// the schedule is testable without a clock.
type RetryPolicy struct {
	// MaxAttempts counts extra attempts after the first call.
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number, giving a linearly
	// increasing backoff.
	BaseDelay time.Duration
}

// DefaultRetryPolicy allows two extra attempts at 500ms and 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond}
}

// Decide evaluates the attempt that just failed. attempt is zero-based:
// attempt 0 is the initial call. Only transient errors are retried; rate
// limits and malformed responses surface immediately.
func (p RetryPolicy) Decide(attempt int, kind ErrorKind) Decision {
	if kind != KindTransient {
		return Decision{}
	}
	if attempt >= p.MaxAttempts {
		return Decision{}
	}
	return Decision{
		Retry: true,
		Delay: time.Duration(attempt+1) * p.BaseDelay,
	}
}
