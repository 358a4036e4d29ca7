package pipeline

import (
	"sync"
	"time"
)

// TenantLimiter is a set of per-tenant token buckets enforcing
// messages-per-minute limits. Unlike a blocking limiter, Allow answers
// immediately: an over-limit message gets a polite refusal, it does not
// queue.
type TenantLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastTime time.Time
}

func NewTenantLimiter() *TenantLimiter {
	return &TenantLimiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token from the tenant's bucket if available.
// perMinute <= 0 disables limiting for the tenant. A changed limit
// (tenant reload) replaces the bucket.
func (l *TenantLimiter) Allow(tenantID string, perMinute int) bool {
	if perMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rate := float64(perMinute) / 60.0
	b, ok := l.buckets[tenantID]
	if !ok || b.rate != rate {
		b = &bucket{
			tokens:   float64(perMinute),
			max:      float64(perMinute),
			rate:     rate,
			lastTime: time.Now(),
		}
		l.buckets[tenantID] = b
	}

	now := time.Now()
	b.tokens += now.Sub(b.lastTime).Seconds() * b.rate
	if b.tokens > b.max {
		b.tokens = b.max
	}
	b.lastTime = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}
