package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether key may make another request in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
	Limit() int
}

// MemoryLimiter is a per-process sliding window.
type MemoryLimiter struct {
	requests int
	window   time.Duration

	mu      sync.Mutex
	clients map[string][]time.Time
	now     func() time.Time
}

func NewMemoryLimiter(requests, windowSeconds int) *MemoryLimiter {
	requests, window := normalizeLimit(requests, windowSeconds)
	return &MemoryLimiter{
		requests: requests,
		window:   window,
		clients:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Limit() int { return l.requests }

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.clients[key]
	cut := sort.Search(len(stamps), func(i int) bool { return stamps[i].After(now.Add(-l.window)) })
	stamps = stamps[cut:]

	if len(stamps) >= l.requests {
		l.clients[key] = stamps
		return false, 0, stamps[0].Add(l.window), nil
	}

	stamps = append(stamps, now)
	l.clients[key] = stamps
	l.sweep(now)
	return true, l.requests - len(stamps), now.Add(l.window), nil
}

// sweep drops idle clients once the map grows large.
func (l *MemoryLimiter) sweep(now time.Time) {
	if len(l.clients) < 10000 {
		return
	}
	for key, stamps := range l.clients {
		if len(stamps) == 0 || now.Sub(stamps[len(stamps)-1]) > l.window {
			delete(l.clients, key)
		}
	}
}

// RedisLimiter is a fixed window shared by every API instance.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
}

func NewRedisLimiter(client *redis.Client, requests, windowSeconds int) *RedisLimiter {
	requests, window := normalizeLimit(requests, windowSeconds)
	return &RedisLimiter{client: client, requests: requests, window: window, prefix: "ratelimit:"}
}

func (l *RedisLimiter) Limit() int { return l.requests }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	bucket := time.Now().Truncate(l.window)
	redisKey := l.prefix + key + ":" + strconv.FormatInt(bucket.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, l.requests, bucket.Add(l.window), err
	}

	count := int(incr.Val())
	remaining := l.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.requests, remaining, bucket.Add(l.window), nil
}

func normalizeLimit(requests, windowSeconds int) (int, time.Duration) {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return requests, time.Duration(windowSeconds) * time.Second
}

// RateLimit limits by client IP. A limiter error lets the request through.
func RateLimit(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				retry := int64(time.Until(reset).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
