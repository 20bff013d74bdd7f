package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/lock"
)

func newLocker(t *testing.T) lock.Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
}

func TestWithLockSerializesHolders(t *testing.T) {
	locker := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	firstRunning := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan error, 2)

	go func() {
		done <- locker.WithLock(ctx, "slot:z-1", 100*time.Millisecond, func(context.Context) error {
			record("first")
			close(firstRunning)
			<-releaseFirst
			return nil
		})
	}()
	<-firstRunning

	// The second holder must wait until the first releases.
	go func() {
		done <- locker.WithLock(ctx, "slot:z-1", 100*time.Millisecond, func(context.Context) error {
			record("second")
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker := newLocker(t)
	ctx := context.Background()
	boom := errors.New("reservation failed")

	err := locker.WithLock(ctx, "slot:z-2", time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The lock must be free immediately, not only after the TTL.
	var ran bool
	require.NoError(t, locker.WithLock(ctx, "slot:z-2", time.Second, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}

func TestReleaseKeepsSuccessorLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx := context.Background()

	firstRunning := make(chan struct{})
	releaseFirst := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- locker.WithLock(ctx, "slot:z-4", 50*time.Millisecond, func(context.Context) error {
			close(firstRunning)
			<-releaseFirst
			return nil
		})
	}()
	<-firstRunning

	// The first holder outlives its TTL; a successor takes the lock.
	mr.FastForward(100 * time.Millisecond)

	secondRunning := make(chan struct{})
	releaseSecond := make(chan struct{})
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- locker.WithLock(ctx, "slot:z-4", time.Minute, func(context.Context) error {
			close(secondRunning)
			<-releaseSecond
			return nil
		})
	}()
	<-secondRunning

	// The stale holder finishes now. Its release carries the old token and
	// must leave the successor's lock in place.
	close(releaseFirst)
	require.NoError(t, <-firstDone)
	require.True(t, mr.Exists("slot:z-4"), "stale release must not free the successor's lock")

	close(releaseSecond)
	require.NoError(t, <-secondDone)
}

func TestWithLockHonorsContextCancel(t *testing.T) {
	locker := newLocker(t)

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "slot:z-3", time.Second, func(context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "slot:z-3", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
