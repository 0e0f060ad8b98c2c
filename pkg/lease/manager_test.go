package lease_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/scoserv/pkg/adapters/redis"
	"github.com/aretw0/scoserv/pkg/lease"
	"github.com/aretw0/scoserv/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesSameRun(t *testing.T) {
	mgr := lease.NewManager()
	ctx := context.Background()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLease(ctx, "run-1", func(context.Context) error {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Zero(t, mgr.Held(), "leases are released after use")
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := lease.NewManager()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = mgr.WithLease(ctx, fmt.Sprintf("run-%d", i), func(context.Context) error { return nil })
	}
	assert.Zero(t, mgr.Held())
}

func TestManager_PropagatesError(t *testing.T) {
	mgr := lease.NewManager()
	boom := errors.New("boom")

	err := mgr.WithLease(context.Background(), "run-1", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string, time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("unavailable")
}

func TestManager_LockerFailure(t *testing.T) {
	mgr := lease.NewManager(lease.WithLocker(failingLocker{}))

	called := false
	err := mgr.WithLease(context.Background(), "run-1", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestManager_DistributedLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr := lease.NewManager(
		lease.WithLocker(redis.NewLocker(client, redis.DefaultPrefix)),
		lease.WithTTL(time.Minute),
	)

	err = mgr.WithLease(context.Background(), "run-1", func(context.Context) error {
		assert.NotEmpty(t, mr.Keys(), "lease key is held in redis")
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys(), "lease key is released")
}

func TestManager_RenewsDistributedLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr := lease.NewManager(
		lease.WithLocker(redis.NewLocker(client, redis.DefaultPrefix)),
		lease.WithTTL(300*time.Millisecond),
	)

	err = mgr.WithLease(context.Background(), "run-1", func(ctx context.Context) error {
		keys := mr.Keys()
		require.Len(t, keys, 1)
		for i := 0; i < 5; i++ {
			mr.FastForward(200 * time.Millisecond)
			require.True(t, mr.Exists(keys[0]), "lease survives past its TTL while the run lasts")
			time.Sleep(150 * time.Millisecond)
		}
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

type lostLocker struct {
	unlockErr error
}

func (l lostLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	unlock, _, err := l.LockRenewable(ctx, key, ttl)
	return unlock, err
}

func (l lostLocker) LockRenewable(context.Context, string, time.Duration) (ports.UnlockFunc, ports.RenewFunc, error) {
	unlock := func(context.Context) error { return l.unlockErr }
	renew := func(context.Context, time.Duration) error { return ports.ErrLockLost }
	return unlock, renew, nil
}

func TestManager_LostLeaseCancelsRun(t *testing.T) {
	mgr := lease.NewManager(lease.WithLocker(lostLocker{}), lease.WithTTL(30*time.Millisecond))

	err := mgr.WithLease(context.Background(), "run-1", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(5 * time.Second):
			return errors.New("run was not canceled")
		}
	})
	assert.ErrorIs(t, err, ports.ErrLockLost)
}

func TestManager_NilLoggerKeepsDefault(t *testing.T) {
	mgr := lease.NewManager(
		lease.WithLogger(nil),
		lease.WithLocker(lostLocker{unlockErr: errors.New("redis down")}),
		lease.WithTTL(time.Minute),
	)

	assert.NotPanics(t, func() {
		err := mgr.WithLease(context.Background(), "run-1", func(context.Context) error { return nil })
		assert.NoError(t, err)
	})
}
