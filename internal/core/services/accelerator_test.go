package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceleratorGuard_Exclusive(t *testing.T) {
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger(), WaitTimeout: 5 * time.Second})

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := guard.Do(context.Background(), "op", func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				if n > atomic.LoadInt32(&maxActive) {
					atomic.StoreInt32(&maxActive, n)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
}

func TestAcceleratorGuard_FailPolicyReturnsBusy(t *testing.T) {
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger(), Policy: LockPolicyFail})

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = guard.Do(context.Background(), "build:a", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	called := false
	err := guard.Do(context.Background(), "build:b", func(ctx context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBusy))
	assert.Contains(t, err.Error(), "build:a")
	assert.False(t, called)
}

func TestAcceleratorGuard_BlockPolicyTimesOut(t *testing.T) {
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{
		Logger:      discardLogger(),
		Policy:      LockPolicyBlock,
		WaitTimeout: 30 * time.Millisecond,
	})

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = guard.Do(context.Background(), "build:a", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	err := guard.Do(context.Background(), "build:b", func(ctx context.Context) error { return nil })

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTimeout))
}

func TestAcceleratorGuard_BlockPolicyWaitsForRelease(t *testing.T) {
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger(), WaitTimeout: time.Second})

	var firstDone atomic.Bool
	started := make(chan struct{})
	go func() {
		_ = guard.Do(context.Background(), "first", func(ctx context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			firstDone.Store(true)
			return nil
		})
	}()
	<-started

	err := guard.Do(context.Background(), "second", func(ctx context.Context) error {
		assert.True(t, firstDone.Load(), "second op must start strictly after the first completes")
		return nil
	})
	require.NoError(t, err)
}

func TestAcceleratorGuard_RunDetachedFromCancellation(t *testing.T) {
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	err := guard.Do(ctx, "build", func(opCtx context.Context) error {
		cancel()
		assert.NoError(t, opCtx.Err(), "operation context must survive client cancellation")
		return nil
	})
	require.NoError(t, err)
}

func TestAcceleratorGuard_ReturnsOperationError(t *testing.T) {
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger()})
	boom := errors.New("boom")

	err := guard.Do(context.Background(), "op", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// guard is free again
	err = guard.Do(context.Background(), "op", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestAcceleratorGuard_Holder(t *testing.T) {
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger()})

	_ = guard.Do(context.Background(), "build:wiki", func(ctx context.Context) error {
		holder, since := guard.Holder()
		assert.Equal(t, "build:wiki", holder)
		assert.False(t, since.IsZero())
		return nil
	})

	holder, _ := guard.Holder()
	assert.Empty(t, holder)
}

func TestAcceleratorGuard_DistributedLock(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger(), Lock: lock})

	err := guard.Do(context.Background(), "build", func(ctx context.Context) error {
		assert.True(t, lock.IsHeld(AcceleratorLockName))
		return nil
	})
	require.NoError(t, err)

	assert.False(t, lock.IsHeld(AcceleratorLockName))
	acquires, releases := lock.Counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
}

func TestAcceleratorGuard_DistributedLockHeldElsewhere(t *testing.T) {
	t.Run("fail policy", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		lock.SetLockHeld(AcceleratorLockName, time.Minute)
		guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger(), Lock: lock, Policy: LockPolicyFail})

		err := guard.Do(context.Background(), "build", func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, domain.ErrBusy)
	})

	t.Run("block policy", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		lock.SetLockHeld(AcceleratorLockName, time.Minute)
		guard := NewAcceleratorGuard(AcceleratorGuardConfig{
			Logger:       discardLogger(),
			Lock:         lock,
			WaitTimeout:  40 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
		})

		err := guard.Do(context.Background(), "build", func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, domain.ErrTimeout)
	})

	t.Run("backend error", func(t *testing.T) {
		lock := mocks.NewMockDistributedLock()
		lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
			return false, errors.New("connection refused")
		}
		guard := NewAcceleratorGuard(AcceleratorGuardConfig{Logger: discardLogger(), Lock: lock})

		err := guard.Do(context.Background(), "build", func(ctx context.Context) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")

		// local semaphore must have been released
		lock.AcquireFn = nil
		assert.NoError(t, guard.Do(context.Background(), "build", func(ctx context.Context) error { return nil }))
	})
}
