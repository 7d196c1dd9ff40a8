package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalLocker(5 * time.Second)

	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "resource:r1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locker.locks, "entries must be released after use")
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := NewLocalLocker(100 * time.Millisecond)

	unlockA, err := locker.Lock(context.Background(), "resource:a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(context.Background(), "resource:b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_Timeout(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "venue:Hall:2024-05-01")
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "venue:Hall:2024-05-01")
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	unlock() // second call is a no-op

	unlock2, err := locker.Lock(context.Background(), "venue:Hall:2024-05-01")
	require.NoError(t, err)
	unlock2()
	assert.Empty(t, locker.locks)
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker(time.Second)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, RedisLockerConfig{Timeout: 50 * time.Millisecond, TTL: time.Second})

	unlock, err := locker.Lock(context.Background(), "resource:r1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("civicportal:lock:resource:r1"))

	_, err = locker.Lock(context.Background(), "resource:r1")
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	assert.False(t, mr.Exists("civicportal:lock:resource:r1"))

	unlock2, err := locker.Lock(context.Background(), "resource:r1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, RedisLockerConfig{Timeout: 50 * time.Millisecond, TTL: time.Second})

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	// lock expired and was taken over by another instance
	require.NoError(t, mr.Set("civicportal:lock:k", "someone-else"))
	unlock()

	got, err := mr.Get("civicportal:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_ExpiredLockCanBeTaken(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, RedisLockerConfig{Timeout: 50 * time.Millisecond, TTL: time.Second})

	_, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_BackendDown(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, RedisLockerConfig{Timeout: 50 * time.Millisecond})
	mr.Close()

	_, err := locker.Lock(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

var (
	_ Locker = (*LocalLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)

func TestRedisLocker_WaiterRetriesUntilReleased(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client, RedisLockerConfig{
		Timeout:    2 * time.Second,
		TTL:        5 * time.Second,
		RetryDelay: 5 * time.Millisecond,
	})

	unlock, err := locker.Lock(context.Background(), "venue:Hall:2025-01-18")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		unlock2, err := locker.Lock(context.Background(), "venue:Hall:2025-01-18")
		if err == nil {
			unlock2()
		}
		acquired <- err
	}()

	// several retry rounds pass before the holder lets go
	time.Sleep(40 * time.Millisecond)
	select {
	case err := <-acquired:
		t.Fatalf("acquired while held: %v", err)
	default:
	}
	unlock()

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}
