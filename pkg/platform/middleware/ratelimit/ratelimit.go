// Package ratelimit throttles requests per client key with token buckets.
package ratelimit

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/httputil"
	"chronostamp/pkg/platform/middleware/metadata"
	"chronostamp/pkg/requestcontext"
)

// KeyFunc picks the bucket for a request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys buckets by the resolved client IP.
func ByClientIP(r *http.Request) string {
	if ip := metadata.GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return metadata.ClientIPFromRequest(r)
}

// ByCaller keys buckets by the authenticated caller, falling back to the IP.
func ByCaller(r *http.Request) string {
	if caller, ok := requestcontext.Caller(r.Context()); ok {
		return caller.Hex()
	}
	return ByClientIP(r)
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per key. Buckets idle for longer than
// idleTTL are swept at most once per idleTTL.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*entry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New returns a limiter allowing perSecond requests with the given burst.
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		buckets: make(map[string]*entry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes a token for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	} else if now.Sub(l.lastSweep) >= l.idleTTL {
		l.evictIdle(now)
		l.lastSweep = now
	}
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *Limiter) evictIdle(now time.Time) {
	for k, e := range l.buckets {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func Middleware(l *Limiter, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !l.Allow(k) {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					"key", k,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
