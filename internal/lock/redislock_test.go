package lock_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/arvhein/backend-merch/internal/lock"
)

func newLocker(t *testing.T) lock.Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{Client: client, Backoff: 5 * time.Millisecond}
}

func TestAcquireBlocksSecondHolder(t *testing.T) {
	locker := newLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "reconcile", time.Second)
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(blocked, "reconcile", time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	release2, err := locker.Acquire(ctx, "reconcile", time.Second)
	require.NoError(t, err)
	release2()
}

func TestWithLockReleasesAfterError(t *testing.T) {
	locker := newLocker(t)
	ctx := context.Background()

	boom := context.Canceled
	err := locker.WithLock(ctx, "reconcile", time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	release, err := locker.Acquire(ctx, "reconcile", time.Second)
	require.NoError(t, err)
	release()
}
