package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/ainotes/secondbrain/internal/api"
)

// tokenBucket implements the token bucket algorithm. It allows bursts of
// requests up to the bucket's capacity.
type tokenBucket struct {
	rate          float64 // tokens generated per second
	capacity      float64
	tokens        float64
	lastTokenTime time.Time
}

func newTokenBucket(rate float64, capacity int) *tokenBucket {
	return &tokenBucket{
		rate:          rate,
		capacity:      float64(capacity),
		tokens:        float64(capacity),
		lastTokenTime: time.Now(),
	}
}

func (tb *tokenBucket) allow(now time.Time) bool {
	elapsed := now.Sub(tb.lastTokenTime)
	if elapsed > 0 {
		tb.tokens += elapsed.Seconds() * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTokenTime = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimiter keeps one token bucket per key (authenticated user, or
// client IP when anonymous).
type RateLimiter struct {
	perMinute int
	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSeen  map[string]time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per key
// with bursts up to the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		buckets:   make(map[string]*tokenBucket),
		lastSeen:  make(map[string]time.Time),
	}
}

// Allow reports whether the key may proceed, consuming one token if so.
func (l *RateLimiter) Allow(key string) bool {
	if l.perMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = newTokenBucket(float64(l.perMinute)/60.0, l.perMinute)
		l.buckets[key] = bucket
	}
	l.lastSeen[key] = now

	// Drop buckets idle long enough to have fully refilled.
	if len(l.buckets) > 1024 {
		for k, seen := range l.lastSeen {
			if now.Sub(seen) > 5*time.Minute {
				delete(l.buckets, k)
				delete(l.lastSeen, k)
			}
		}
	}

	return bucket.allow(now)
}

// RateLimit limits requests per authenticated user (falling back to the
// client IP) using the token bucket above. Runs after auth so the key is
// the user ID whenever one is present.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetUserID(r.Context())
			if key == "" {
				key = clientIP(r)
			}

			if !limiter.Allow(key) {
				api.Error(w, http.StatusTooManyRequests, "too many requests, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
