// Package coordination serialises work across service replicas.
package coordination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 25 * time.Millisecond

// ArenaLocker hands out exclusive, per-key locks. Lock blocks until the key is
// free, the wait budget is spent or ctx is done. The returned func releases
// the lock and is safe to call more than once.
type ArenaLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ArenaKey is the lock key for one (arena, server) queue.
func ArenaKey(serverID, arenaID string) string {
	return fmt.Sprintf("arena:%s:%s", serverID, arenaID)
}

var errLockBusy = errors.New(errors.ErrCodeConflict, "arena is busy, try again")

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every replica using the same Redis.
type RedisLocker struct {
	rdb  *redis.Client
	ttl  time.Duration
	wait time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to acquire arena lock")
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, errLockBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the caller's context is already cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err()
		})
	}, nil
}

// LocalLocker serialises callers within one process. It is used when no
// Redis is configured.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[key] = s
	}
	return s
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	s := l.slot(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
	case <-timer.C:
		return nil, errLockBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-s })
	}, nil
}
