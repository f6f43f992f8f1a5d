package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockBusy means the context ended while another run held the lock.
	ErrLockBusy = errors.New("organization lock is held by another run")
	// ErrLockUnavailable means the lock backend could not be reached.
	ErrLockUnavailable = errors.New("organization lock backend unavailable")
)

// Locker serializes pipeline runs for one organization. Acquire wraps
// ErrLockBusy when it gives up waiting and ErrLockUnavailable when the
// backend fails.
type Locker interface {
	Acquire(ctx context.Context, orgID uuid.UUID) (release func(), err error)
}

const lockPrefix = "goassess:lock:org:"

// Delete the key only if we still own it.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds a per-organization lease in Redis so runs on different
// workers do not overlap. The lease expires after ttl if a worker dies.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, poll: 500 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, orgID uuid.UUID) (func(), error) {
	key := lockPrefix + orgID.String()
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockBusy, ctx.Err())
		case <-time.After(l.poll):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = unlockScript.Run(ctx, l.client, []string{key}, token).Err()
		})
	}, nil
}

// LocalLocker serializes runs within one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, orgID uuid.UUID) (func(), error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[orgID]
		if !busy {
			done := make(chan struct{})
			l.locks[orgID] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, orgID)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockBusy, ctx.Err())
		case <-held:
		}
	}
}
