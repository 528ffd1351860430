package driven

import (
	"context"
	"time"
)

// DistributedLock provides named locks shared across processes.
// The accelerator guard uses it so instances sharing one GPU never build concurrently.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL without blocking.
	// Returns true if the lock was acquired, false if already held.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock.
	// Backends without TTL treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
