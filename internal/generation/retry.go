package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Outcome classifies one attempt.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeEmpty     Outcome = "empty"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeTransport Outcome = "transport"
)

// AttemptError records why a single attempt was rejected.
type AttemptError struct {
	Attempt int
	Outcome Outcome
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d %s: %v", e.Attempt, e.Outcome, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Policy bounds a retry loop. MaxAttempts counts every call, the first
// included.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Call produces one candidate response.
type Call func(ctx context.Context) (string, error)

// Check accepts a candidate and returns the text to keep.
type Check func(raw string) (string, error)

// Notify observes every rejected attempt.
type Notify func(err *AttemptError, next time.Duration)

// Retry runs call until check accepts a non-empty result or the policy is
// exhausted. Transport errors, panics, empty text and failed checks all
// consume one attempt. It returns the accepted text, the number of calls
// made and, on failure, the last attempt's error.
func Retry(ctx context.Context, p Policy, call Call, check Check, notify Notify) (string, int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var (
		accepted string
		attempts int
	)

	op := func() error {
		attempts++

		raw, err := safeCall(ctx, call)
		if err != nil {
			return &AttemptError{Attempt: attempts, Outcome: OutcomeTransport, Err: err}
		}
		if strings.TrimSpace(raw) == "" {
			return &AttemptError{Attempt: attempts, Outcome: OutcomeEmpty, Err: ErrEmptyResponse}
		}
		text, err := check(raw)
		if err != nil {
			return &AttemptError{Attempt: attempts, Outcome: OutcomeInvalid, Err: err}
		}
		accepted = text
		return nil
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, next time.Duration) {
			var ae *AttemptError
			if errors.As(err, &ae) {
				notify(ae, next)
			}
		}
	}

	err := backoff.RetryNotify(op, b, onRetry)
	if err != nil {
		// The final rejection is not passed to onRetry.
		var ae *AttemptError
		if notify != nil && errors.As(err, &ae) {
			notify(ae, backoff.Stop)
		}
		return "", attempts, err
	}
	return accepted, attempts, nil
}

func safeCall(ctx context.Context, call Call) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()
	return call(ctx)
}
