// Package filelock implements DistributedLock with advisory file locks, for
// instances on one host that share an accelerator but no Redis or PostgreSQL.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"github.com/gofrs/flock"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock keeps one lock file per name under dir.
// Locks are released by the OS when the holding process exits, so TTLs are ignored.
type Lock struct {
	dir string

	mu   sync.Mutex
	held map[string]*flock.Flock
}

// New creates a file lock rooted at dir
func New(dir string) *Lock {
	return &Lock{dir: dir, held: make(map[string]*flock.Flock)}
}

// Path returns the lock file used for name
func (l *Lock) Path(name string) string {
	return filepath.Join(l.dir, "."+name+".lock")
}

// Acquire takes the lock file without blocking
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return false, nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(l.Path(name))
	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}
	l.held[name] = fl
	return true, nil
}

// Release unlocks the file if this process holds it
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	fl, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend only confirms the lock is still held
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	fl, ok := l.held[name]
	l.mu.Unlock()

	if !ok || !fl.Locked() {
		return fmt.Errorf("lock %s not held by this instance", name)
	}
	return nil
}

// Ping checks the lock directory is usable
func (l *Lock) Ping(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("lock directory %s: %w", l.dir, err)
	}
	return nil
}
