package api

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/mask-sentinel/internal/config"
	"golang.org/x/time/rate"
)

const limiterIdleTimeout = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter holds one token bucket per client IP.
type ipLimiter struct {
	enabled bool
	limit   rate.Limit
	burst   int

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func newIPLimiter(cfg config.RateLimitConfig) *ipLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		enabled: cfg.Enabled && cfg.RequestsPerMin > 0,
		limit:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether a request from ip may proceed.
func (l *ipLimiter) Allow(ip string) bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()

	return c.limiter.Allow()
}

// cleanup drops buckets idle for longer than maxIdle.
func (l *ipLimiter) cleanup(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// cleanupLoop drops idle buckets every interval until ctx is done.
func (l *ipLimiter) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup(limiterIdleTimeout)
		}
	}
}
