package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed. The key is the
// client address: rate limiting runs before identity resolution, so no
// authenticated subject is available yet.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

// InProcessLimiter is a simple sliding-window rate limiter that tracks
// request counts per client key in memory.
type InProcessLimiter struct {
	rpm      int
	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter allowing rpm requests per
// key per minute. rpm <= 0 disables limiting.
func NewInProcessLimiter(rpm int) *InProcessLimiter {
	return &InProcessLimiter{
		rpm:      rpm,
		counters: make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
// Fails open: an empty key allows the request.
func (l *InProcessLimiter) Allow(_ context.Context, key string) error {
	if l.rpm <= 0 || key == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		// New window.
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > l.rpm {
		return ErrTooManyRequests
	}

	return nil
}
