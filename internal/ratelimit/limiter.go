package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/counter"
)

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int // seconds until the next window opens
}

// Limiter answers "is this actor, under this preset, within budget right
// now?" using fixed-window counting. Fixed windows are deliberate: bursts at
// window boundaries are accepted in exchange for O(1) state per actor.
type Limiter struct {
	store    counter.Store
	registry *Registry
	now      func() time.Time
}

func NewLimiter(store counter.Store, registry *Registry) *Limiter {
	return &Limiter{
		store:    store,
		registry: registry,
		now:      time.Now,
	}
}

// Check increments the actor's counter for the current window and reports
// whether the request is within budget. Every call counts, including ones
// that end up rejected, so a rejected client cannot probe for free within a
// window. The only error returned is an unknown preset; counter backend
// failures are absorbed by the store's failover policy.
func (l *Limiter) Check(ctx context.Context, actorID string, preset Preset) (Result, error) {
	limits, err := l.registry.Lookup(preset)
	if err != nil {
		return Result{}, err
	}

	now := l.now()
	windowSecs := int64(limits.Window.Seconds())
	currentWindow := now.Unix() / windowSecs
	key := fmt.Sprintf("ratelimit:%s:%s:%d", preset, actorID, currentWindow)

	count, err := l.store.Incr(ctx, key, limits.Window)
	if err != nil {
		// Store implementations fail open; treat a surfaced error the
		// same way rather than dropping the request.
		return Result{Allowed: true, Limit: limits.MaxRequests}, nil
	}

	remaining := limits.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	nextWindow := (currentWindow + 1) * windowSecs
	retryAfter := int(nextWindow - now.Unix())
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Result{
		Allowed:    count <= int64(limits.MaxRequests),
		Limit:      limits.MaxRequests,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}
