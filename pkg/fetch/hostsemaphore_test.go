package fetch

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHostKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"http://Example.COM/a", "example.com"},
		{"https://example.com:443/", "example.com"},
		{"http://example.com:80", "example.com"},
		{"http://example.com:443", "example.com:443"},
		{"https://example.com:8443/x", "example.com:8443"},
		{"https://example.com./", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, hostKey(mustURL(t, tt.raw)))
		})
	}
}

func TestHostSemaphore_LimitPerHost(t *testing.T) {
	pool := NewHostSemaphorePool(2, testLogger())

	r1, err := pool.Acquire(context.Background(), mustURL(t, "http://host-a.com/1"))
	require.NoError(t, err)
	r2, err := pool.Acquire(context.Background(), mustURL(t, "https://host-a.com/2"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, mustURL(t, "http://HOST-A.com:80/3"))
	assert.Error(t, err, "both schemes and the explicit default port share one cap")

	rb, err := pool.Acquire(context.Background(), mustURL(t, "http://host-b.com/"))
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	r1()
	r3, err := pool.Acquire(context.Background(), mustURL(t, "http://host-a.com/3"))
	require.NoError(t, err)

	r2()
	r3()
	rb()
}

func TestHostSemaphore_ReleaseIsIdempotent(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	u := mustURL(t, "http://example.com/")

	release, err := pool.Acquire(context.Background(), u)
	require.NoError(t, err)
	release()
	release()

	r1, err := pool.Acquire(context.Background(), u)
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, u)
	assert.Error(t, err, "a double release must not hand out an extra permit")
}

func TestHostSemaphore_DefaultLimit(t *testing.T) {
	pool := NewHostSemaphorePool(0, testLogger())
	assert.Equal(t, int64(defaultPerHostLimit), pool.limit)
}

func TestHostSemaphore_Usage(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	busy := mustURL(t, "https://busy.example.com/")

	release, err := pool.Acquire(context.Background(), busy)
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		r, err := pool.Acquire(context.Background(), busy)
		if err != nil {
			t.Errorf("queued acquire failed: %v", err)
			close(acquired)
			return
		}
		acquired <- r
	}()

	require.Eventually(t, func() bool {
		for _, u := range pool.Usage() {
			if u.Host == "busy.example.com" {
				return u.Waited == 1 && u.Active == 2
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	quiet, err := pool.Acquire(context.Background(), mustURL(t, "http://quiet.example.com/"))
	require.NoError(t, err)
	quiet()

	release()
	second, ok := <-acquired
	require.True(t, ok)
	second()

	usage := pool.Usage()
	require.Len(t, usage, 2)
	assert.Equal(t, HostUsage{Host: "busy.example.com", Active: 0, Peak: 1, Acquired: 2, Waited: 1}, usage[0], "contended hosts sort first")
	assert.Equal(t, HostUsage{Host: "quiet.example.com", Active: 0, Peak: 1, Acquired: 1, Waited: 0}, usage[1])
}

func TestHostSemaphore_EvictIdle(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())

	held, err := pool.Acquire(context.Background(), mustURL(t, "http://held.com/"))
	require.NoError(t, err)
	for _, raw := range []string{"http://a.com/", "http://b.com/"} {
		release, err := pool.Acquire(context.Background(), mustURL(t, raw))
		require.NoError(t, err)
		release()
	}
	require.Equal(t, 3, pool.Len())

	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)
	assert.Equal(t, 1, pool.Len(), "held host must survive eviction")

	held()
}

func TestHostSemaphore_AcquireRollbackOnCancel(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	u := mustURL(t, "http://host-a.com/")
	release, err := pool.Acquire(context.Background(), u)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx, u)
	assert.Error(t, err)

	release()
	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)
	assert.Equal(t, 0, pool.Len(), "cancelled waiter must not pin the entry")
}

func TestHostSemaphore_RunEvictionStopsOnCancel(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.RunEviction(ctx, time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunEviction did not respect context cancellation")
	}
}

func TestHostSemaphore_ConcurrentNeverExceedsLimit(t *testing.T) {
	const limit = 3
	pool := NewHostSemaphorePool(limit, testLogger())
	u := mustURL(t, "https://busy.com/")
	var current, peak atomic.Int32
	var wg sync.WaitGroup

	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := pool.Acquire(context.Background(), u)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	usage := pool.Usage()
	require.Len(t, usage, 1)
	assert.Equal(t, int64(30), usage[0].Acquired)
	assert.LessOrEqual(t, usage[0].Peak, int64(limit))
}
