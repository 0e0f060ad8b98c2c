package ports

import (
	"context"
	"errors"
	"time"
)

// ErrLockLost is returned when a lock expired or was taken over before it
// could be renewed.
var ErrLockLost = errors.New("distributed lock lost")

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// RenewFunc extends a held lock to ttl from now.
type RenewFunc func(ctx context.Context, ttl time.Duration) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets workers on different hosts agree on who executes a given run.
type DistributedLocker interface {
	// Lock attempts to acquire a lock for the given key (e.g., a run id).
	// It blocks until the lock is acquired or the context is canceled.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// RenewableLocker is a DistributedLocker whose locks can be kept alive past
// their initial TTL.
type RenewableLocker interface {
	DistributedLocker
	LockRenewable(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, RenewFunc, error)
}
