package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiterConfig holds the login throttle settings. Login is keyed by
// client IP because the caller has no identity yet; the limit slows
// credential stuffing without locking out the address entirely.
type LoginLimiterConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// DefaultLoginLimiterConfig allows 10 attempts per minute with a burst of
// 10 per address.
func DefaultLoginLimiterConfig() LoginLimiterConfig {
	return LoginLimiterConfig{
		Rate:            rate.Limit(10.0 / 60.0),
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LoginLimiter rate-limits the login endpoint per client address. Idle
// entries are collected in the background so the map does not grow with
// every address ever seen.
type LoginLimiter struct {
	config LoginLimiterConfig
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh chan struct{}
}

// NewLoginLimiter creates a LoginLimiter and starts its cleanup loop.
// Call Stop when shutting down.
func NewLoginLimiter(config LoginLimiterConfig, logger *slog.Logger) *LoginLimiter {
	ll := &LoginLimiter{
		config:   config,
		logger:   logger,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	go ll.cleanupLoop()
	return ll
}

// Stop terminates the background cleanup goroutine.
func (ll *LoginLimiter) Stop() {
	close(ll.stopCh)
}

// Middleware rejects requests over the per-address budget with 429 and a
// Retry-After hint. Place it on the login route only.
func (ll *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientAddr(r)
		if !ll.allow(addr) {
			ll.logger.Warn("login rate limit exceeded", slog.String("addr", addr))
			writeRateLimitResponse(w, ll.config.Rate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EntryCount reports how many addresses currently hold a limiter.
func (ll *LoginLimiter) EntryCount() int {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	return len(ll.limiters)
}

func (ll *LoginLimiter) allow(addr string) bool {
	ll.mu.Lock()
	cl, ok := ll.limiters[addr]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(ll.config.Rate, ll.config.Burst)}
		ll.limiters[addr] = cl
	}
	cl.lastAccess = time.Now()
	ll.mu.Unlock()

	return cl.limiter.Allow()
}

func (ll *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(ll.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ll.cleanup()
		case <-ll.stopCh:
			return
		}
	}
}

func (ll *LoginLimiter) cleanup() {
	ttl := ll.config.CleanupInterval * 2
	now := time.Now()

	ll.mu.Lock()
	for addr, cl := range ll.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(ll.limiters, addr)
		}
	}
	ll.mu.Unlock()
}

// clientAddr strips the port. chi's RealIP middleware has already replaced
// RemoteAddr with the forwarded address when one is present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Seconds until one token refills.
	retryAfter := int(math.Ceil(1.0 / float64(r)))
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": "too many login attempts, please try again later",
	})
}
