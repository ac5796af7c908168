package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig is one row of rate_limits.
type RateLimitConfig struct {
	MaxRequests   int
	WindowSeconds int
	Enabled       bool
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter applies fixed-window limits per client IP and endpoint, where
// endpoint is "METHOD /path". Rules come from the rate_limits table; an
// endpoint without a rule is unlimited.
type RateLimiter struct {
	db      *sql.DB
	mu      sync.RWMutex
	rules   map[string]RateLimitConfig
	buckets sync.Map // "ip endpoint" -> *bucket
	exclude []string
	now     func() time.Time
}

// NewRateLimiter loads the rules from db. Paths under excludePrefixes are
// never limited.
func NewRateLimiter(db *sql.DB, excludePrefixes ...string) *RateLimiter {
	rl := &RateLimiter{
		db:      db,
		rules:   make(map[string]RateLimitConfig),
		exclude: excludePrefixes,
		now:     time.Now,
	}
	rl.reload()
	return rl
}

// SetRule upserts the rule for endpoint and reloads.
func (rl *RateLimiter) SetRule(ctx context.Context, endpoint string, cfg RateLimitConfig) error {
	_, err := rl.db.ExecContext(ctx, `
		INSERT INTO rate_limits (endpoint, max_requests, window_seconds, enabled) VALUES (?,?,?,?)
		ON CONFLICT(endpoint) DO UPDATE SET
			max_requests = excluded.max_requests,
			window_seconds = excluded.window_seconds,
			enabled = excluded.enabled`,
		endpoint, cfg.MaxRequests, cfg.WindowSeconds, cfg.Enabled)
	if err != nil {
		return fmt.Errorf("ratelimit: set rule: %w", err)
	}
	rl.reload()
	return nil
}

// StartReloader reloads rules every minute and drops expired buckets every
// five minutes until done is closed.
func (rl *RateLimiter) StartReloader(done <-chan struct{}) {
	reloadTick := time.NewTicker(time.Minute)
	gcTick := time.NewTicker(5 * time.Minute)
	go func() {
		defer reloadTick.Stop()
		defer gcTick.Stop()
		for {
			select {
			case <-done:
				return
			case <-reloadTick.C:
				rl.reload()
			case <-gcTick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) reload() {
	rows, err := rl.db.Query(`SELECT endpoint, max_requests, window_seconds, enabled FROM rate_limits`)
	if err != nil {
		slog.Warn("ratelimit: reload rules", "error", err)
		return
	}
	defer rows.Close()

	rules := make(map[string]RateLimitConfig)
	for rows.Next() {
		var endpoint string
		var cfg RateLimitConfig
		if err := rows.Scan(&endpoint, &cfg.MaxRequests, &cfg.WindowSeconds, &cfg.Enabled); err != nil {
			continue
		}
		rules[endpoint] = cfg
	}

	rl.mu.Lock()
	rl.rules = rules
	rl.mu.Unlock()
	slog.Debug("ratelimit: rules reloaded", "count", len(rules))
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) allow(ip, endpoint string) bool {
	rl.mu.RLock()
	cfg, ok := rl.rules[endpoint]
	rl.mu.RUnlock()
	if !ok || !cfg.Enabled {
		return true
	}

	now := rl.now()
	window := time.Duration(cfg.WindowSeconds) * time.Second
	v, _ := rl.buckets.LoadOrStore(ip+" "+endpoint, &bucket{resetAt: now.Add(window)})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(window)
	}
	b.count++
	return b.count <= cfg.MaxRequests
}

// Middleware answers 429 once a client exceeds its limit. Requests asking
// for JSON get a JSON body; browsers are redirected back with a flash.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)
		if rl.allow(ip, endpoint) {
			next.ServeHTTP(w, r)
			return
		}

		GetLogger(r.Context()).Warn("ratelimit: blocked", "ip", ip, "endpoint", endpoint)
		w.Header().Set("Retry-After", "60")

		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		SetFlash(w, "error", "Too many requests, slow down")
		back := r.Header.Get("Referer")
		if back == "" {
			back = "/"
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
	})
}

// ExtractIP returns the first X-Forwarded-For hop, else the RemoteAddr host.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
