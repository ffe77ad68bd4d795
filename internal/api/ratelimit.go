package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-client limiter is kept.
const limiterIdleTTL = 10 * time.Minute

// clientLimiter throttles requests per client address. It guards the
// credential endpoints against password guessing.
type clientLimiter struct {
	interval time.Duration // time to refill one request
	burst    int
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter allows perMinute requests per client per minute, with
// bursts of up to perMinute.
func newClientLimiter(perMinute int) *clientLimiter {
	return &clientLimiter{
		interval: time.Minute / time.Duration(perMinute),
		burst:    perMinute,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
}

// allow reports whether the client identified by key may proceed.
func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(l.interval), l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// retryAfter is the whole number of seconds until one more request is
// allowed for a client that has exhausted its burst.
func (l *clientLimiter) retryAfter() int {
	secs := int((l.interval + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// cleanup drops limiters that have not been used for limiterIdleTTL.
func (l *clientLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-limiterIdleTTL)
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// size returns the number of tracked clients.
func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// cleanupLoop runs cleanup periodically until the context is cancelled.
func (l *clientLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// rateLimitMiddleware applies the credential limiter when one is configured.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := clientAddr(r)
		if !s.limiter.allow(key) {
			s.logger.Warn("rate limit exceeded",
				"client", key,
				"path", r.URL.Path,
				"request_id", requestID(r.Context()),
			)
			if s.metrics != nil {
				s.metrics.AuthAttempt(authAction(r), "throttled")
			}
			w.Header().Set("Retry-After", strconv.Itoa(s.limiter.retryAfter()))
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many requests, try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddr returns the host part of the remote address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
