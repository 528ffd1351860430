package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"golang.org/x/sync/semaphore"
)

// LockPolicy decides what a caller does when the accelerator is held
type LockPolicy string

const (
	// LockPolicyBlock waits up to the configured bound, then fails with domain.ErrTimeout
	LockPolicyBlock LockPolicy = "block"

	// LockPolicyFail returns domain.ErrBusy immediately
	LockPolicyFail LockPolicy = "fail"
)

// AcceleratorLockName is the distributed lock shared by every instance on one accelerator
const AcceleratorLockName = "accelerator"

// AcceleratorGuard serializes heavy engine work (index builds and searcher activation).
// Only one operation holds the guard at a time; it is not re-entrant.
//
// When a DistributedLock is configured the guard also holds the named lock so that
// separate processes sharing the accelerator are serialized too.
type AcceleratorGuard struct {
	sem    *semaphore.Weighted
	logger *slog.Logger

	policy       LockPolicy
	waitTimeout  time.Duration
	lock         driven.DistributedLock
	lockName     string
	lockTTL      time.Duration
	pollInterval time.Duration

	mu     sync.RWMutex
	holder string
	since  time.Time
}

// AcceleratorGuardConfig holds configuration for the guard.
type AcceleratorGuardConfig struct {
	Policy       LockPolicy             // default: block
	WaitTimeout  time.Duration          // upper wait bound for block policy (default: 10m)
	Lock         driven.DistributedLock // Optional: cross-process exclusion
	LockName     string                 // default: accelerator
	LockTTL      time.Duration          // TTL of the distributed lock, extended while held (default: 2m)
	PollInterval time.Duration          // retry interval for the distributed lock (default: 250ms)
	Logger       *slog.Logger
}

// NewAcceleratorGuard creates a new guard.
func NewAcceleratorGuard(cfg AcceleratorGuardConfig) *AcceleratorGuard {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy == "" {
		policy = LockPolicyBlock
	}

	waitTimeout := cfg.WaitTimeout
	if waitTimeout == 0 {
		waitTimeout = 10 * time.Minute
	}

	lockName := cfg.LockName
	if lockName == "" {
		lockName = AcceleratorLockName
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * time.Minute
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 250 * time.Millisecond
	}

	return &AcceleratorGuard{
		sem:          semaphore.NewWeighted(1),
		logger:       logger,
		policy:       policy,
		waitTimeout:  waitTimeout,
		lock:         cfg.Lock,
		lockName:     lockName,
		lockTTL:      lockTTL,
		pollInterval: pollInterval,
	}
}

// Do runs fn while holding the accelerator.
// Once fn starts it runs to completion: the context passed to fn is detached from
// ctx cancellation, so a client giving up does not abort the build.
func (g *AcceleratorGuard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.waitTimeout)
	defer cancel()

	if err := g.acquireLocal(waitCtx, ctx, op); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if g.lock != nil {
		if err := g.acquireDistributed(waitCtx, ctx, op); err != nil {
			return err
		}
		stop := g.keepAlive(op)
		defer func() {
			stop()
			if err := g.lock.Release(context.Background(), g.lockName); err != nil {
				g.logger.Warn("failed to release accelerator lock", "op", op, "error", err)
			}
		}()
	}

	g.setHolder(op)
	defer g.setHolder("")

	start := time.Now()
	g.logger.Debug("accelerator acquired", "op", op)
	err := fn(context.WithoutCancel(ctx))
	g.logger.Debug("accelerator released", "op", op, "held", time.Since(start))
	return err
}

func (g *AcceleratorGuard) acquireLocal(waitCtx, ctx context.Context, op string) error {
	if g.sem.TryAcquire(1) {
		return nil
	}

	holder, _ := g.Holder()
	if holder == "" {
		holder = "another operation"
	}
	if g.policy == LockPolicyFail {
		return fmt.Errorf("%w: %s is running, %s rejected", domain.ErrBusy, holder, op)
	}

	g.logger.Info("waiting for accelerator", "op", op, "holder", holder, "max_wait", g.waitTimeout)
	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		return g.waitError(ctx, op, holder)
	}
	return nil
}

func (g *AcceleratorGuard) acquireDistributed(waitCtx, ctx context.Context, op string) error {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		acquired, err := g.lock.Acquire(waitCtx, g.lockName, g.lockTTL)
		if err != nil {
			if waitCtx.Err() != nil {
				return g.waitError(ctx, op, "another instance")
			}
			return fmt.Errorf("acquire accelerator lock: %w", err)
		}
		if acquired {
			return nil
		}
		if g.policy == LockPolicyFail {
			return fmt.Errorf("%w: accelerator held by another instance, %s rejected", domain.ErrBusy, op)
		}

		select {
		case <-waitCtx.Done():
			return g.waitError(ctx, op, "another instance")
		case <-ticker.C:
		}
	}
}

// waitError distinguishes a caller that went away from the wait bound expiring
func (g *AcceleratorGuard) waitError(ctx context.Context, op, holder string) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s still held by %s after %s", domain.ErrTimeout, op, holder, g.waitTimeout)
}

// keepAlive extends the distributed lock until the returned stop func is called
func (g *AcceleratorGuard) keepAlive(op string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(g.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := g.lock.Extend(context.Background(), g.lockName, g.lockTTL); err != nil {
					g.logger.Warn("failed to extend accelerator lock", "op", op, "error", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (g *AcceleratorGuard) setHolder(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holder = op
	if op == "" {
		g.since = time.Time{}
	} else {
		g.since = time.Now()
	}
}

// Holder returns the operation currently holding the accelerator, if any
func (g *AcceleratorGuard) Holder() (string, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.holder, g.since
}
