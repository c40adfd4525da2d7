package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedLimiter hands out one token bucket per key (client IP). The map is
// dropped wholesale every hour so idle keys do not accumulate.
type keyedLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

// newKeyedLimiter allows perMinute attempts per key with the given burst.
// perMinute <= 0 disables limiting.
func newKeyedLimiter(perMinute, burst int) *keyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &keyedLimiter{
		limiters:    make(map[string]*rate.Limiter),
		limit:       limit,
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (k *keyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if time.Since(k.lastCleanup) > time.Hour {
		k.limiters = make(map[string]*rate.Limiter)
		k.lastCleanup = time.Now()
	}
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = l
	}
	return l.Allow()
}
