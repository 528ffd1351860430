package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// DefaultKeyPrefix namespaces lock keys when no prefix is configured
const DefaultKeyPrefix = "retriever:lock:"

// Lock implements DistributedLock with SET NX PX and owner-checked scripts.
// Every retriever instance sharing an accelerator points at the same Redis.
type Lock struct {
	client  redis.UniversalClient
	prefix  string
	ownerID string
}

// LockOption customises a Lock
type LockOption func(*Lock)

// WithKeyPrefix overrides DefaultKeyPrefix, e.g. one prefix per GPU host
func WithKeyPrefix(prefix string) LockOption {
	return func(l *Lock) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewLock creates a Redis lock with a freshly generated owner ID
func NewLock(client redis.UniversalClient, opts ...LockOption) *Lock {
	l := &Lock{
		client:  client,
		prefix:  DefaultKeyPrefix,
		ownerID: newOwnerID(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// newOwnerID returns hostname:pid:random
func newOwnerID() string {
	hostname, _ := os.Hostname()
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(b))
}

func (l *Lock) key(name string) string {
	return l.prefix + name
}

// Acquire sets the key only if absent. A lock already held by this owner is not re-entered.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(name), l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Both scripts act only when the stored owner matches ARGV[1]
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)

	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Release deletes the key if this instance owns it. Releasing an expired or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key(name)}, l.ownerID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend pushes the expiry out while a long build is still running
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key(name)}, l.ownerID, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s not held by this instance", name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID identifies this instance in the lock value
func (l *Lock) OwnerID() string {
	return l.ownerID
}
