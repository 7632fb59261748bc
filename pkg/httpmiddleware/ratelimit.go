package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Max is the number of requests a key may make per Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// counter holds the hits of a key in the current fixed window and the one
// before it.
type counter struct {
	start      time.Time
	curr, prev int
}

type verdict struct {
	ok        bool
	remaining int
	reset     time.Time
}

// limiter approximates a sliding window by weighting the previous fixed
// window with the share of it that still falls inside the trailing Window.
type limiter struct {
	max    int
	window time.Duration
	key    func(*http.Request) string

	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	key := cfg.KeyFunc
	if key == nil {
		key = clientIP
	}
	return &limiter{
		max:      cfg.Max,
		window:   cfg.Window,
		key:      key,
		counters: make(map[string]*counter),
	}
}

func (l *limiter) take(key string, now time.Time) verdict {
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counters[key]
	switch {
	case c == nil:
		c = &counter{start: start}
		l.counters[key] = c
	case start.Sub(c.start) == l.window:
		c.start, c.prev, c.curr = start, c.curr, 0
	case start.After(c.start):
		c.start, c.prev, c.curr = start, 0, 0
	}

	share := 1 - float64(now.Sub(start))/float64(l.window)
	used := int(math.Ceil(float64(c.prev)*share)) + c.curr

	v := verdict{reset: start.Add(l.window)}
	if used >= l.max {
		return v
	}
	c.curr++
	v.ok = true
	v.remaining = max(0, l.max-used-1)
	return v
}

// evict drops keys idle for two full windows.
func (l *limiter) evict(now time.Time) {
	cutoff := now.Truncate(l.window).Add(-2 * l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if !c.start.After(cutoff) {
			delete(l.counters, key)
		}
	}
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit limits requests per client key. Responses carry the
// X-RateLimit-* headers; rejected requests get 429 with Retry-After.
// Idle keys are never evicted; long-running servers should use
// RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware()
}

// RateLimitWithCleanup is RateLimit with a goroutine evicting idle keys until
// ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.evictLoop(ctx)
	return l.middleware()
}

func (l *limiter) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			v := l.take(l.key(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))
			if v.ok {
				next.ServeHTTP(w, r)
				return
			}

			wait := max(0, v.reset.Sub(now))
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("error", func(e *jx.Encoder) { e.Str("rate_limited") })
				e.Field("message", func(e *jx.Encoder) { e.Str("Too many attempts, try again later.") })
			})
			_, _ = w.Write(e.Bytes())
		})
	}
}

// CookieKey keys the limit by the value of a cookie, falling back to the
// client IP when the cookie is absent.
func CookieKey(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return "cookie:" + c.Value
		}
		return clientIP(r)
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
