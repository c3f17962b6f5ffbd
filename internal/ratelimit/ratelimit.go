package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

type RateLimit interface {
	Allow(addr string) bool
}

type windowData struct {
	count       int
	windowStart time.Time
}

// FixedWindowLimiter counts requests per address inside a fixed
// window. The window map needs the mutex (check-and-set); the totals
// are plain counters and stay lock-free.
type FixedWindowLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string]*windowData
	mutex       sync.Mutex

	allowed atomic.Int64
	denied  atomic.Int64
}

func New(maxRequests int, interval time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		maxRequests: maxRequests,
		window:      interval,
		requests:    make(map[string]*windowData),
	}
}

func (rl *FixedWindowLimiter) Allow(addr string) bool {
	if rl.allow(addr) {
		rl.allowed.Inc()
		return true
	}
	rl.denied.Inc()
	return false
}

func (rl *FixedWindowLimiter) allow(addr string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	wd := rl.requests[addr]

	// no data yet, or the previous window has elapsed
	if wd == nil || now.Sub(wd.windowStart) > rl.window {
		if rl.maxRequests == 0 {
			return false
		}

		rl.requests[addr] = &windowData{
			count:       1,
			windowStart: now,
		}
		return true
	}

	if wd.count >= rl.maxRequests {
		return false
	}
	wd.count++

	return true
}

// Stats returns the total allowed and denied request counts since start.
func (rl *FixedWindowLimiter) Stats() (allowed, denied int64) {
	return rl.allowed.Load(), rl.denied.Load()
}
