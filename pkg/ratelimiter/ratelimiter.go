package ratelimiter

import (
	"sync"
	"time"

	"github.com/pubkeyapp/realms-vsr-holders/pkg/clock"
)

// window tracks request count and reset time for one client key
type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter implements fixed-window rate limiting with in-memory tracking
type RateLimiter struct {
	windows  map[string]*window
	mutex    sync.Mutex
	limit    int
	size     time.Duration
	clock    clock.Clock
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a RateLimiter allowing limit requests per window
func New(limit int, size time.Duration) *RateLimiter {
	return NewWithClock(limit, size, clock.SystemClock{})
}

// NewWithClock is New with an explicit time source
func NewWithClock(limit int, size time.Duration, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		clock:   clk,
		stopCh:  make(chan struct{}),
	}
}

// Limit returns the number of requests allowed per window
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Allow counts one request for key. It reports whether the request fits in
// the current window, how many requests remain and when the window resets.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.clock.Now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(rl.size)}
		rl.windows[key] = w
	}

	if w.count >= rl.limit {
		return false, 0, w.resetAt
	}
	w.count++
	return true, rl.limit - w.count, w.resetAt
}

// Cleanup removes expired windows and reports how many were dropped
func (rl *RateLimiter) Cleanup() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.clock.Now()
	removed := 0
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until Stop is called
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}
