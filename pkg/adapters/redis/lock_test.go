package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/scoserv/pkg/adapters/redis"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "run-1", 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:run-1"), "Lock key should be set in Redis")

	assert.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:run-1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "run-1", 5*time.Second)
	assert.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, "run-1", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "run-1", 5*time.Second)
	assert.NoError(t, err)
	defer unlock2(ctx)
	assert.True(t, mr.Exists("test:lock:run-1"))
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "run-1", time.Second)
	assert.NoError(t, err)

	// The first lease expires and someone else takes the lock.
	mr.FastForward(2 * time.Second)
	unlock2, err := locker.Lock(ctx, "run-1", 5*time.Second)
	assert.NoError(t, err)

	assert.NoError(t, unlock1(ctx))
	assert.True(t, mr.Exists("test:lock:run-1"), "stale holder must not release the new lock")
	assert.NoError(t, unlock2(ctx))
}

func TestRedisLocker_Renew(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, renew, err := locker.LockRenewable(ctx, "run-1", time.Second)
	require.NoError(t, err)

	mr.FastForward(800 * time.Millisecond)
	require.NoError(t, renew(ctx, 5*time.Second))
	assert.Equal(t, 5*time.Second, mr.TTL("test:lock:run-1"))

	mr.FastForward(2 * time.Second)
	assert.True(t, mr.Exists("test:lock:run-1"), "renewed lock outlives its first TTL")
	require.NoError(t, unlock(ctx))

	assert.ErrorIs(t, renew(ctx, time.Second), ports.ErrLockLost)
}
