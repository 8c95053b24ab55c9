package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/counter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *counter.LocalStore) {
	t.Helper()

	registry, err := NewRegistry(nil)
	require.NoError(t, err)

	store := counter.NewLocalStore()
	t.Cleanup(store.Close)

	return NewLimiter(store, registry), store
}

func TestLimiter_AllowsWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	result, err := limiter.Check(ctx, "actor-1", PresetAPI)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, 60, result.Limit)
	assert.Equal(t, 59, result.Remaining)
	assert.GreaterOrEqual(t, result.RetryAfter, 0)
	assert.LessOrEqual(t, result.RetryAfter, 60)
}

func TestLimiter_DeniesOverBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "actor-1", PresetSensitive)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be within the 3-request budget", i+1)
	}

	result, err := limiter.Check(ctx, "actor-1", PresetSensitive)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, 0)
}

// Rejected calls still count: a denied client probing repeatedly keeps
// pushing its counter up instead of sneaking through on a later attempt.
func TestLimiter_RejectedCallsStillIncrement(t *testing.T) {
	limiter, store := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := limiter.Check(ctx, "actor-1", PresetSensitive)
		require.NoError(t, err)
	}

	now := time.Now()
	window := now.Unix() / 60
	key := fmt.Sprintf("ratelimit:sensitive:actor-1:%d", window)

	count, err := store.Peek(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
}

func TestLimiter_ActorsAndPresetsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Check(ctx, "actor-1", PresetSensitive)
		require.NoError(t, err)
	}

	// actor-1 exhausted sensitive but not api
	result, err := limiter.Check(ctx, "actor-1", PresetAPI)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// actor-2 is unaffected by actor-1's usage
	result, err = limiter.Check(ctx, "actor-2", PresetSensitive)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.Remaining)
}

func TestLimiter_UnknownPreset(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	_, err := limiter.Check(context.Background(), "actor-1", Preset("no_such_preset"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

// Exactly min(N, max) of N concurrent calls are allowed: no undercount, no
// overcount.
func TestLimiter_ConcurrentExactness(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	const n = 100 // PresetAPI allows 60

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.Check(ctx, "actor-1", PresetAPI)
			assert.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			if result.Allowed {
				allowed++
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 60, allowed)
}

// Requests either side of a window boundary land in different windows even
// when temporally adjacent. The boundary burst this permits is an accepted
// fixed-window characteristic.
func TestLimiter_FixedWindowBoundary(t *testing.T) {
	registry, err := NewRegistry(nil)
	require.NoError(t, err)

	store := counter.NewLocalStore()
	t.Cleanup(store.Close)

	limiter := NewLimiter(store, registry)

	// Pin the clock to just before a minute boundary
	boundary := time.Unix(1_700_000_040, 0).Truncate(time.Minute).Add(time.Minute)
	limiter.now = func() time.Time { return boundary.Add(-time.Millisecond) }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "actor-1", PresetSensitive)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "actor-1", PresetSensitive)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "budget exhausted just before the boundary")

	// 2ms later, the next window opens with a fresh budget
	limiter.now = func() time.Time { return boundary.Add(time.Millisecond) }

	result, err = limiter.Check(ctx, "actor-1", PresetSensitive)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.Remaining)
}
