package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/scoserv/internal/logging"
	"github.com/aretw0/scoserv/pkg/ports"
)

// DefaultTTL bounds how long a distributed lease survives a crashed holder.
const DefaultTTL = 30 * time.Second

// renewalsPerTTL is how often a renewable lease is extended within one TTL.
const renewalsPerTTL = 3

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager grants exclusive leases keyed by run id.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithTTL sets the distributed lease TTL. Leases from a ports.RenewableLocker
// are extended while the run lasts; others must outlive the longest run.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a lease manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Held returns the number of run ids with a live local lease.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLease runs fn while holding the lease for runID.
func (m *Manager) WithLease(ctx context.Context, runID string, fn func(context.Context) error) error {
	entry := m.acquire(runID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(runID)
	}()

	if m.locker == nil {
		return fn(ctx)
	}

	unlock, renew, err := m.lock(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to acquire distributed lease: %w", err)
	}
	defer func() {
		// The run context may already be canceled; release regardless.
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release distributed lease (will expire via TTL)",
				"run_id", runID,
				"err", err,
			)
		}
	}()

	if renew == nil {
		return fn(ctx)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	done := make(chan struct{})
	defer close(done)
	go m.keepAlive(ctx, runID, renew, cancel, done)
	return fn(ctx)
}

func (m *Manager) lock(ctx context.Context, runID string) (ports.UnlockFunc, ports.RenewFunc, error) {
	key := "run:" + runID
	if rl, ok := m.locker.(ports.RenewableLocker); ok {
		return rl.LockRenewable(ctx, key, m.ttl)
	}
	unlock, err := m.locker.Lock(ctx, key, m.ttl)
	return unlock, nil, err
}

// keepAlive extends the lease until done is closed. A lost lease cancels the
// run so two workers never execute it at once; other renewal errors are
// retried on the next tick.
func (m *Manager) keepAlive(ctx context.Context, runID string, renew ports.RenewFunc, cancel context.CancelCauseFunc, done <-chan struct{}) {
	ticker := time.NewTicker(m.ttl / renewalsPerTTL)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := renew(ctx, m.ttl)
		switch {
		case err == nil:
		case errors.Is(err, ports.ErrLockLost):
			m.logger.Error("Distributed lease lost, stopping run", "run_id", runID, "err", err)
			cancel(err)
			return
		default:
			m.logger.Warn("Failed to renew distributed lease", "run_id", runID, "err", err)
		}
	}
}
