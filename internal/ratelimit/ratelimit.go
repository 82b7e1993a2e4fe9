// Package ratelimit limits requests per client IP with token buckets
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wrale/game-session-auth/internal/logging"
)

const cleanupInterval = 5 * time.Minute

// Config is the allowed request rate per client
type Config struct {
	RequestsPerMinute int
	Burst             int

	// OnLimit writes the 429 response. Retry-After is already set.
	// Defaults to WriteLimited.
	OnLimit func(w http.ResponseWriter, r *http.Request)
}

// Limiter holds one token bucket per client key
type Limiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	onLimit  func(w http.ResponseWriter, r *http.Request)

	mu          sync.Mutex
	lastCleanup time.Time
}

// New creates a Limiter. Burst defaults to RequestsPerMinute.
func New(cfg Config) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = WriteLimited
	}
	return &Limiter{
		limit:       rate.Limit(float64(cfg.RequestsPerMinute) / time.Minute.Seconds()),
		burst:       cfg.Burst,
		onLimit:     cfg.OnLimit,
		lastCleanup: time.Now(),
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that have refilled, i.e. idle clients
func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// Middleware rejects requests over the limit with 429
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientIP(r)
		limiter := l.get(key)
		if limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}

		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		retryAfter := max(int(delay.Seconds()), 1)

		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			"client", key,
			"path", r.URL.Path,
			"retry_after", retryAfter,
		)

		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		l.onLimit(w, r)
	})
}

// Error code and description sent with a 429
const (
	ErrorCode        = "rate_limit_exceeded"
	ErrorDescription = "Too many requests. Please try again later."
)

// WriteLimited writes the default 429 JSON body
func WriteLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusTooManyRequests)
	err := json.NewEncoder(w).Encode(map[string]string{
		"error":             ErrorCode,
		"error_description": ErrorDescription,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("writing rate limit response", "error", err)
	}
}

// ClientIP returns the host of r.RemoteAddr. Forwarding headers are not
// read here; the router's RealIP middleware has already applied them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
