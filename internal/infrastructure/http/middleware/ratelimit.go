package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yambati03/touille/internal/infrastructure/cache"
	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// RateLimiter throttles requests per client IP, and pipeline runs per
// user. When a counter store is present counters are shared across
// instances; otherwise an in-process token bucket per IP is used. A
// failing store never blocks a request.
type RateLimiter struct {
	cfg      config.RateLimitConfig
	counters outbound.CacheRepository
	logger   *zap.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter. counters may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, counters outbound.CacheRepository, logger *zap.Logger) *RateLimiter {
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 60
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	if cfg.ProcessPerHour <= 0 {
		cfg.ProcessPerHour = 20
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	l := &RateLimiter{
		cfg:      cfg,
		counters: counters,
		logger:   logger.Named("rate-limit"),
		visitors: make(map[string]*visitor),
	}
	go l.cleanupLoop()
	return l
}

// Handler limits requests per client IP
func (l *RateLimiter) Handler() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.cfg.Enable {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !l.allowRequest(r, ip) {
				l.logger.Warn("Rate limit exceeded",
					zap.String("ip", ip),
					zap.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "60")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":{"code":"TOO_MANY_REQUESTS","message":"rate limit exceeded"}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ProcessLimit caps extraction pipeline runs per user per hour. The
// pipeline is the expensive path, so it gets its own budget on top of
// the request limit.
func (l *RateLimiter) ProcessLimit() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.cfg.Enable || l.counters == nil {
				next.ServeHTTP(w, r)
				return
			}

			subject := CurrentUserID(r.Context())
			if subject == "" {
				subject = clientIP(r)
			}

			key := cache.RateLimitKey("process", subject)
			count, err := l.counters.Increment(r.Context(), key, time.Hour)
			if err != nil {
				l.logger.Warn("Process rate counter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count > int64(l.cfg.ProcessPerHour) {
				l.logger.Warn("Process rate limit exceeded",
					zap.String("subject", subject),
					zap.Int64("count", count),
				)
				w.Header().Set("Retry-After", "3600")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":{"code":"TOO_MANY_REQUESTS","message":"too many extraction requests, try again later"}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) allowRequest(r *http.Request, ip string) bool {
	if l.cfg.UseRedis && l.counters != nil {
		key := cache.RateLimitKey("requests", ip)
		count, err := l.counters.Increment(r.Context(), key, time.Minute)
		if err == nil {
			return count <= int64(l.cfg.RequestsPerMin)
		}
		l.logger.Debug("Request rate counter unavailable, using local limiter", zap.Error(err))
	}

	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerMin)/60, l.cfg.BurstSize),
		}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

func (l *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-5 * time.Minute)
		l.mu.Lock()
		for ip, v := range l.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
