package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		poll:   100 * time.Millisecond,
	}
}

// Lock acquires a distributed lock for the given key using Redis SET NX PX.
// The lock value is a random token so that only the holder can release it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	unlock, _, err := l.LockRenewable(ctx, key, ttl)
	return unlock, err
}

// LockRenewable is Lock that also returns a function extending the lock.
// Renewing a lock whose token no longer matches yields ports.ErrLockLost.
func (l *Locker) LockRenewable(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, ports.RenewFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			unlock := func(ctx context.Context) error {
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
			}
			renew := func(ctx context.Context, ttl time.Duration) error {
				n, err := l.client.Eval(ctx, renewScript, []string{lockKey}, token, ttl.Milliseconds()).Int()
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("%w: %s", ports.ErrLockLost, key)
				}
				return nil
			}
			return unlock, renew, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
