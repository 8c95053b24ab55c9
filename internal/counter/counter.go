package counter

import (
	"context"
	"time"
)

// Store is a key -> integer counter with atomic increment-and-read and TTL
// expiry. Concurrent Incr calls on the same key must observe strictly
// increasing counts with no lost updates.
type Store interface {
	// Atomically increments key and returns the new count. The TTL is
	// applied when the key is first created; it is not extended by later
	// increments.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Returns the current count, or 0 if the key does not exist or has
	// expired.
	Peek(ctx context.Context, key string) (int64, error)
}
