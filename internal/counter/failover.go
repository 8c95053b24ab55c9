package counter

import (
	"context"
	"log"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/circuitbreaker"
)

// FailoverStore serves counters from a distributed backend and falls back to
// a local store when it is unreachable. Rate limiting is a defensive control,
// not a billing control, so the policy is fail-open with degraded enforcement:
// a backend outage never surfaces as an error, it just narrows counting to
// this one process until the backend recovers.
type FailoverStore struct {
	remote  Store
	local   Store
	breaker *circuitbreaker.CircuitBreaker
}

func NewFailoverStore(remote Store, local Store, breaker *circuitbreaker.CircuitBreaker) *FailoverStore {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{})
	}

	return &FailoverStore{
		remote:  remote,
		local:   local,
		breaker: breaker,
	}
}

func (s *FailoverStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.breaker.Allow() {
		count, err := s.remote.Incr(ctx, key, ttl)
		if err == nil {
			s.breaker.RecordSuccess()
			return count, nil
		}

		s.breaker.RecordFailure()
		log.Printf("counter: distributed backend unavailable, serving from local fallback (state=%s): %v",
			s.breaker.State(), err)
	}

	return s.local.Incr(ctx, key, ttl)
}

func (s *FailoverStore) Peek(ctx context.Context, key string) (int64, error) {
	if s.breaker.Allow() {
		count, err := s.remote.Peek(ctx, key)
		if err == nil {
			s.breaker.RecordSuccess()
			return count, nil
		}

		s.breaker.RecordFailure()
	}

	return s.local.Peek(ctx, key)
}

// Degraded reports whether the store is currently bypassing the distributed
// backend. Exposed for health reporting.
func (s *FailoverStore) Degraded() bool {
	return s.breaker.State() != circuitbreaker.StateClosed
}
