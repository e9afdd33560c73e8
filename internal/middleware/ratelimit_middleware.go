package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// InvalidAuthRateLimiter throttles failed authentication attempts per IP.
type InvalidAuthRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	attempts  map[string]*attemptInfo
	lastSweep time.Time
}

type attemptInfo struct {
	limiter *rate.Limiter
	lastAt  time.Time
}

// NewInvalidAuthRateLimiter allows burst failed attempts per IP, refilled over
// window (default one minute).
func NewInvalidAuthRateLimiter(burst int, window time.Duration) *InvalidAuthRateLimiter {
	if burst < 1 {
		burst = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &InvalidAuthRateLimiter{
		limit:     rate.Every(window / time.Duration(burst)),
		burst:     burst,
		attempts:  make(map[string]*attemptInfo),
		lastSweep: time.Now(),
	}
}

// Allow records one failed attempt from ip and reports whether it is still
// within the limit.
func (r *InvalidAuthRateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastSweep) > 5*time.Minute {
		for k, info := range r.attempts {
			if now.Sub(info.lastAt) > time.Minute {
				delete(r.attempts, k)
			}
		}
		r.lastSweep = now
	}

	info, ok := r.attempts[ip]
	if !ok {
		info = &attemptInfo{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.attempts[ip] = info
	}
	info.lastAt = now
	return info.limiter.AllowN(now, 1)
}
