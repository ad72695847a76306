package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket. Clients are keyed by API key fingerprint when
// one is presented, otherwise by remote host.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

func NewRateLimiter(perMinute int, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1000
	}
	if burst <= 0 {
		burst = 200
	}
	return &RateLimiter{
		clients: map[string]*limiterEntry{},
		rps:     rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		now:     time.Now,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := rl.getLimiter(rl.clientKey(r))
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeErr(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) clientKey(r *http.Request) string {
	if id, ok := ClientIDFromContext(r.Context()); ok {
		return id
	}
	if token := APIKeyFromRequest(r); token != "" {
		return clientID(token)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	if l, ok := rl.clients[key]; ok {
		l.lastSeen = now
		return l.limiter
	}
	rl.evictIdle(now)
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.clients[key] = &limiterEntry{limiter: lim, lastSeen: now}
	return lim
}

// evictIdle drops clients not seen for limiterIdleTTL. Caller holds rl.mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for k, e := range rl.clients {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(rl.clients, k)
		}
	}
}
