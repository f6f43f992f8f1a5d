package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accept(raw string) (string, error) { return raw, nil }

func TestRetry_StopsAtFirstAcceptedResult(t *testing.T) {
	calls := 0
	call := func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	}

	out, attempts, err := Retry(context.Background(), Policy{MaxAttempts: 4}, call, accept, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_ClassifiesEveryFailureKind(t *testing.T) {
	responses := []func() (string, error){
		func() (string, error) { return "", errors.New("connection reset") },
		func() (string, error) { return "   ", nil },
		func() (string, error) { return "invalid", nil },
		func() (string, error) { panic("boom") },
	}
	i := 0
	call := func(ctx context.Context) (string, error) {
		r := responses[i]
		i++
		return r()
	}
	check := func(raw string) (string, error) {
		if raw == "invalid" {
			return "", errors.New("bad shape")
		}
		return raw, nil
	}

	var seen []Outcome
	notify := func(err *AttemptError, next time.Duration) { seen = append(seen, err.Outcome) }

	_, attempts, err := Retry(context.Background(), Policy{MaxAttempts: 4}, call, check, notify)
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []Outcome{OutcomeTransport, OutcomeEmpty, OutcomeInvalid, OutcomeTransport}, seen)

	var ae *AttemptError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Error(), "panicked")
}

func TestRetry_WaitsBetweenAttempts(t *testing.T) {
	call := func(ctx context.Context) (string, error) { return "", nil }

	start := time.Now()
	_, attempts, err := Retry(context.Background(), Policy{MaxAttempts: 3, Delay: 20 * time.Millisecond}, call, accept, nil)
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRetry_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	call := func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", nil
	}

	_, _, err := Retry(ctx, Policy{MaxAttempts: 4, Delay: time.Second}, call, accept, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetry_ZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	call := func(ctx context.Context) (string, error) {
		calls++
		return "", nil
	}

	_, _, err := Retry(context.Background(), Policy{}, call, accept, nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
