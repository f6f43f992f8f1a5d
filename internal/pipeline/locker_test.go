package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameOrganization(t *testing.T) {
	l := NewLocalLocker()
	org := uuid.New()

	release, err := l.Acquire(context.Background(), org)
	require.NoError(t, err)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		release2, err := l.Acquire(context.Background(), org)
		if err == nil {
			acquired.Store(true)
			release2()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load())

	release()
	release() // second call is a no-op

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	assert.True(t, acquired.Load())
}

func TestLocalLocker_OtherOrganizationsDoNotWait(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Acquire(context.Background(), uuid.New())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	release2, err := l.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	release2()
}

func TestLocalLocker_GivesUpWhenContextEnds(t *testing.T) {
	l := NewLocalLocker()
	org := uuid.New()

	release, err := l.Acquire(context.Background(), org)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, org)
	assert.ErrorIs(t, err, ErrLockBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// setNXClient answers SetNX with a fixed result. Any other call panics.
type setNXClient struct {
	redis.UniversalClient
	ok  bool
	err error
}

func (c setNXClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if c.err != nil {
		cmd.SetErr(c.err)
	} else {
		cmd.SetVal(c.ok)
	}
	return cmd
}

func TestRedisLocker_BackendFailure(t *testing.T) {
	dialErr := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	l := NewRedisLocker(setNXClient{err: dialErr}, time.Minute)

	_, err := l.Acquire(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.ErrorIs(t, err, dialErr)
	assert.NotErrorIs(t, err, ErrLockBusy)
}

func TestRedisLocker_GivesUpWhileHeld(t *testing.T) {
	l := NewRedisLocker(setNXClient{ok: false}, time.Minute)
	l.poll = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := l.Acquire(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrLockBusy)
	assert.NotErrorIs(t, err, ErrLockUnavailable)
}
