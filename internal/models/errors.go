package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error kinds used across the pipeline. Component-level errors never
// escape analyze; they surface as missing evidence, downgraded tiers,
// or entries in RunOutput.Errors.

// ErrCircuitOpen is returned when an upstream's breaker short-circuits
// a call. Callers treat it as a soft miss.
var ErrCircuitOpen = errors.New("circuit open")

// ErrEmptyGameList is the only failure analyze itself can return, and
// only under strict mode.
var ErrEmptyGameList = errors.New("empty game list")

// BadUpstreamError marks a payload that failed adapter invariants.
// Non-retryable; the affected record is dropped.
type BadUpstreamError struct {
	Reason  string
	Excerpt string
}

func (e *BadUpstreamError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("bad upstream payload: %s", e.Reason)
	}
	return fmt.Sprintf("bad upstream payload: %s (%.80q)", e.Reason, e.Excerpt)
}

// ThrottledError is returned when a rate-limiter acquisition times out.
// Callers fail soft and treat the probe as missing evidence.
type ThrottledError struct {
	Upstream string
	Waited   time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled by %s limiter after %s", e.Upstream, e.Waited)
}

// PlayerNotFoundError reports an unresolvable normalized player key.
type PlayerNotFoundError struct {
	Key string
}

func (e *PlayerNotFoundError) Error() string {
	return fmt.Sprintf("player not found: %q", e.Key)
}

// TransientError wraps an error that is safe to retry: timeouts,
// 429/5xx, connection resets, explicit retry outcomes.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// TransientExhaustedError reports that the retry executor gave up.
type TransientExhaustedError struct {
	Attempts int
	Last     error
}

func (e *TransientExhaustedError) Error() string {
	return fmt.Sprintf("transient exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *TransientExhaustedError) Unwrap() error { return e.Last }

// IntegrityError reports a post-compute invariant violation (EV
// identity, probability bounds, fair-odds identity). The recommendation
// carrying it is downgraded to tier D.
type IntegrityError struct {
	Field  string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s: %s", e.Field, e.Detail)
}

// IsTransient reports whether an error belongs to the declared
// transient set the retry executor is allowed to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var th *ThrottledError
	if errors.As(err, &th) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// IsSoftMiss reports whether an error should be handled as missing
// evidence rather than a unit failure.
func IsSoftMiss(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var th *ThrottledError
	if errors.As(err, &th) {
		return true
	}
	var pnf *PlayerNotFoundError
	return errors.As(err, &pnf)
}
