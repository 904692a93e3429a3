package acquisition

import (
	"context"
	"fmt"
	"net/http"
)

// ErrorKind classifies an acquisition failure. Every kind except
// KindBothStrategiesExhausted is recovered locally by strategy fallback and
// cool-downs; exhaustion surfaces as a per-source skip in the cycle summary.
type ErrorKind string

const (
	KindTimeout                 ErrorKind = "TIMEOUT"
	KindAuthRejected            ErrorKind = "AUTH_REJECTED"
	KindRateLimited             ErrorKind = "RATE_LIMITED"
	KindBlocked                 ErrorKind = "BLOCKED"
	KindBothStrategiesExhausted ErrorKind = "BOTH_STRATEGIES_EXHAUSTED"
)

type AcquisitionError struct {
	Kind     ErrorKind
	Strategy StrategyKind
	Source   string
	Err      error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acquisition %s failed for source %s: %s", e.Strategy, e.Source, e.Kind)
	}
	return fmt.Sprintf("acquisition %s failed for source %s: %s: %s", e.Strategy, e.Source, e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, strategy StrategyKind, source string, err error) *AcquisitionError {
	return &AcquisitionError{Kind: kind, Strategy: strategy, Source: source, Err: err}
}

// classifyHTTPStatus maps an HTTP status to the failure taxonomy.
func classifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthRejected
	default:
		return KindBlocked
	}
}

// classifyErr distinguishes deadline expiry from everything else.
func classifyErr(err error) ErrorKind {
	if err == context.DeadlineExceeded {
		return KindTimeout
	}
	if deadline, ok := err.(interface{ Timeout() bool }); ok && deadline.Timeout() {
		return KindTimeout
	}
	return KindBlocked
}
