package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when a lock release finds the key owned by someone
// else, usually because the TTL expired mid-section.
var ErrNotHeld = errors.New("lock: not held")

// releaseScript deletes the key only when the stored token still matches,
// so an expired lock that was re-acquired elsewhere is never released here.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker is a Redis-backed mutual exclusion primitive. Used to keep a single
// reconciliation run active across API and worker processes.
type Locker struct {
	Client  *redis.Client
	Backoff time.Duration
}

// Acquire takes the lock, polling until it succeeds or ctx is cancelled. The
// returned release func is safe to call once.
func (l Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	token := uuid.NewString()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				_ = releaseScript.Run(context.Background(), l.Client, []string{key}, token).Err()
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// WithLock runs fn while holding the lock and always releases afterwards.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	release, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
