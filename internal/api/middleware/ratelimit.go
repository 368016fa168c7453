package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gatherly/server/internal/config"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	TierUser   RateLimitTier = "user"
	// TierLogin throttles credential guessing much harder than normal
	// traffic.
	TierLogin RateLimitTier = "login"
)

type rateLimitKey string

const rateLimitTierKey rateLimitKey = "rateLimitTier"

func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, rateLimitTierKey, tier)
}

// WithRateLimitTierHandler tags every request passing through with the
// given tier before the RateLimit middleware picks it up.
func WithRateLimitTierHandler(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
		})
	}
}

func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	store := newLimiterStore(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			tier := TierPublic
			if value, ok := r.Context().Value(rateLimitTierKey).(RateLimitTier); ok {
				tier = value
			}

			limiter := store.limiter(tier, clientKey(r))
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const (
	limiterSweepInterval = 5 * time.Minute
	limiterStaleAfter    = 15 * time.Minute
)

type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic: cfg.PublicPerMinute,
			TierUser:   cfg.UserPerMinute,
			TierLogin:  cfg.LoginPerMinute,
		},
		lastSweep: time.Now(),
	}
}

func (s *limiterStore) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := s.perMinute[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweepLocked(now)

	if entry, ok := s.limiters[lookup]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	interval := time.Minute / time.Duration(limit)
	limiter := rate.NewLimiter(rate.Every(interval), limit)
	s.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// sweepLocked drops limiters unseen for a while so the map cannot grow
// without bound under a spray of client addresses. Piggybacks on
// request handling; no background goroutine to stop.
func (s *limiterStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < limiterSweepInterval {
		return
	}
	s.lastSweep = now
	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterStaleAfter {
			delete(s.limiters, key)
		}
	}
}

func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
