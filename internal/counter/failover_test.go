package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails on demand, standing in for an unreachable Redis
type flakyStore struct {
	mu      sync.Mutex
	failing bool
	calls   int
	inner   *LocalStore
}

func newFlakyStore() *flakyStore {
	return &flakyStore{inner: NewLocalStore()}
}

func (s *flakyStore) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *flakyStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	s.calls++
	failing := s.failing
	s.mu.Unlock()

	if failing {
		return 0, errors.New("connection refused")
	}
	return s.inner.Incr(ctx, key, ttl)
}

func (s *flakyStore) Peek(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()

	if failing {
		return 0, errors.New("connection refused")
	}
	return s.inner.Peek(ctx, key)
}

func (s *flakyStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestFailoverStore_UsesRemoteWhenHealthy(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyStore()
	defer remote.inner.Close()
	local := NewLocalStore()
	defer local.Close()

	store := NewFailoverStore(remote, local, nil)

	count, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.False(t, store.Degraded())

	// The local fallback stayed untouched
	localCount, err := local.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), localCount)
}

// Backend outage mid-window: requests keep being counted against a local
// limit rather than allowed through unchecked.
func TestFailoverStore_FallsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyStore()
	defer remote.inner.Close()
	local := NewLocalStore()
	defer local.Close()

	store := NewFailoverStore(remote, local, nil)

	_, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)

	remote.setFailing(true)

	for i := 1; i <= 5; i++ {
		count, err := store.Incr(ctx, "k", time.Minute)
		require.NoError(t, err, "fallback must not surface infra errors")
		assert.Equal(t, int64(i), count, "local fallback keeps its own strictly increasing count")
	}

	localCount, err := local.Peek(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(5), localCount)
}

func TestFailoverStore_BreakerOpensAndSkipsRemote(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyStore()
	defer remote.inner.Close()
	local := NewLocalStore()
	defer local.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 3, Timeout: time.Hour})
	store := NewFailoverStore(remote, local, breaker)

	remote.setFailing(true)

	for i := 0; i < 10; i++ {
		_, err := store.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	assert.True(t, store.Degraded())
	// 3 failures trip the breaker; the remaining 7 calls skip the backend
	assert.Equal(t, 3, remote.callCount())
}

func TestFailoverStore_RecoversAfterTimeout(t *testing.T) {
	ctx := context.Background()
	remote := newFlakyStore()
	defer remote.inner.Close()
	local := NewLocalStore()
	defer local.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 1, Timeout: 10 * time.Millisecond})
	store := NewFailoverStore(remote, local, breaker)

	remote.setFailing(true)
	_, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, store.Degraded())

	remote.setFailing(false)
	time.Sleep(15 * time.Millisecond)

	// Probe succeeds and the breaker closes again
	_, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, store.Degraded())
}
