// Package ratelimit provides a keyed token-bucket limiter. It throttles
// outbound notification delivery per channel so a burst of moves does not
// flood the desktop or the mail server.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed manages per-key rate limiting. Each unique key gets its own
// independent token bucket.
type Keyed struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a keyed limiter allowing rps events per second with the given
// burst per key.
func New(rps float64, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// NewEvery creates a keyed limiter allowing one event per interval per key,
// with the given burst.
func NewEvery(interval time.Duration, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(interval),
		burst:    burst,
	}
}

// Allow reports whether an event for the given key may proceed right now.
// Returns immediately without blocking.
func (k *Keyed) Allow(key string) bool {
	return k.getLimiter(key).Allow()
}

// Wait blocks until an event for the given key is allowed or the context is
// canceled.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.getLimiter(key).Wait(ctx)
}

// getLimiter returns the limiter for a key, creating one if needed.
func (k *Keyed) getLimiter(key string) *rate.Limiter {
	// Fast path: read lock
	k.mu.RLock()
	limiter, exists := k.limiters[key]
	k.mu.RUnlock()

	if exists {
		return limiter
	}

	// Slow path: write lock to create
	k.mu.Lock()
	defer k.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = k.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(k.limit, k.burst)
	k.limiters[key] = limiter
	return limiter
}
