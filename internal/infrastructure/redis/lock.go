package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// Lua script for safe lock release (only owner can release)
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	// Lua script for lock extension
	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// ErrLockNotHeld is returned when extending or releasing a lock this holder
// no longer owns.
var ErrLockNotHeld = errors.New("lock not held or expired")

// DistributedLock is a Redis lease. The outbox relay holds one so that only a
// single worker instance publishes at a time.
type DistributedLock struct {
	client   redis.Scripter
	setter   redis.StringCmdable
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a new distributed lock. owner identifies the
// holder in the lock value; an empty owner gets a random one.
func NewDistributedLock(client redis.UniversalClient, key, owner string, ttl time.Duration) *DistributedLock {
	if owner == "" {
		owner = uuid.NewString()
	}
	return &DistributedLock{
		client: client,
		setter: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  owner + ":" + uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	// SET NX PX sets the lock only if nobody holds it
	success, err := l.setter.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = success
	return success, nil
}

// Refresh extends a held lock or, when not held, tries to take it. It
// reports whether this holder owns the lock afterwards.
func (l *DistributedLock) Refresh(ctx context.Context) (bool, error) {
	if !l.acquired {
		return l.Acquire(ctx)
	}
	err := l.Extend(ctx, l.ttl)
	if errors.Is(err, ErrLockNotHeld) {
		l.acquired = false
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Extend extends the lock TTL
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.acquired {
		return ErrLockNotHeld
	}

	result, err := extendLockScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}

	val, ok := result.(int64)
	if !ok || val == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Release releases the lock
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}
	l.acquired = false

	result, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	val, ok := result.(int64)
	if !ok || val == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsAcquired returns whether the lock is acquired
func (l *DistributedLock) IsAcquired() bool {
	return l.acquired
}
