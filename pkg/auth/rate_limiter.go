package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether one more call for key fits the limit.
// Implementations that fail open return true with the error.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// SlidingWindowLimiter keeps call timestamps per key in memory. It suits a
// single long-running process; Lambda deployments use the DynamoDB limiter.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	calls    map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	lastScan time.Time
}

// NewSlidingWindowLimiter allows limit calls per key within any window.
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		calls:  make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	l.evictIdle(now, cutoff)

	recent := dropBefore(l.calls[key], cutoff)
	if len(recent) >= l.limit {
		l.calls[key] = recent
		return false, nil
	}
	l.calls[key] = append(recent, now)
	return true, nil
}

// evictIdle forgets keys with no call inside the window, at most once per
// window, so one-off client IPs do not accumulate.
func (l *SlidingWindowLimiter) evictIdle(now, cutoff time.Time) {
	if now.Sub(l.lastScan) < l.window {
		return
	}
	l.lastScan = now
	for key, calls := range l.calls {
		if len(calls) == 0 || !calls[len(calls)-1].After(cutoff) {
			delete(l.calls, key)
		}
	}
}

// dropBefore removes the timestamps at or before cutoff. calls is sorted.
func dropBefore(calls []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(calls) && !calls[i].After(cutoff) {
		i++
	}
	return calls[i:]
}

// PrefixedLimiter namespaces keys so one store can serve users and IPs
type PrefixedLimiter struct {
	prefix  string
	limiter RateLimiter
}

// NewUserRateLimiter limits per authenticated user
func NewUserRateLimiter(limiter RateLimiter) *PrefixedLimiter {
	return &PrefixedLimiter{prefix: "user:", limiter: limiter}
}

// NewIPRateLimiter limits per client IP
func NewIPRateLimiter(limiter RateLimiter) *PrefixedLimiter {
	return &PrefixedLimiter{prefix: "ip:", limiter: limiter}
}

func (l *PrefixedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(ctx, l.prefix+key)
}
