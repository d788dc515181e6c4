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
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables
	// limiting.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// Decision is the outcome of Limiter.Allow.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type window struct {
	prev      float64
	curr      float64
	currStart time.Time
}

// Limiter approximates a sliding window by weighting the previous fixed
// window's count by its overlap with the sliding one.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	clients map[string]*window
}

// NewLimiter returns a Limiter allowing max requests per window and key.
func NewLimiter(max int, size time.Duration) *Limiter {
	return &Limiter{max: max, window: size, clients: make(map[string]*window)}
}

// Allow records a request for key at now when it fits in the limit.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.window)
	w, ok := l.clients[key]
	switch {
	case !ok:
		w = &window{currStart: start}
		l.clients[key] = w
	case start.Sub(w.currStart) >= 2*l.window:
		*w = window{currStart: start}
	case !start.Equal(w.currStart):
		*w = window{prev: w.curr, currStart: start}
	}

	overlap := 1 - float64(now.Sub(w.currStart))/float64(l.window)
	used := w.prev*overlap + w.curr
	d := Decision{ResetAt: w.currStart.Add(l.window)}
	if used >= float64(l.max) {
		return d
	}
	w.curr++
	d.Allowed = true
	d.Remaining = max(0, int(float64(l.max)-used-1))
	return d
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Sweep forgets keys whose windows have fully expired as of now.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.currStart) >= 2*l.window {
			delete(l.clients, key)
		}
	}
}

// RateLimit enforces cfg per client key. Rejected requests get 429 with a
// Retry-After header; every response carries X-RateLimit-* headers. Expired
// keys are swept every two windows until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	l := NewLimiter(cfg.Max, cfg.Window)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Sweep(now)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(keyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				retry := max(0, time.Until(d.ResetAt))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by the first X-Forwarded-For hop, X-Real-IP, or the
// remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HeaderOrClientIP keys requests by the given header, falling back to
// ClientIP when it is missing. Shoppers sharing an address but sending
// different header values get separate budgets.
func HeaderOrClientIP(header string) func(*http.Request) string {
	return func(r *http.Request) string {
		ip := ClientIP(r)
		if v := r.Header.Get(header); printableToken(v, maxRequestIDLen) {
			return ip + "|" + v
		}
		return ip
	}
}
