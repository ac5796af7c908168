// Package shield is the HTTP middleware stack in front of the contacts
// handlers: maintenance gate, HEAD handling, security headers, form body cap,
// request tracing, rate limiting and flash messages.
//
//	stack, h := shield.DefaultStack(db, shield.Options{})
//	h.StartReloaders(done)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
//
// Rules and the maintenance flag live in SQLite (see Schema) so an operator
// can flip them with the sqlite3 CLI while the server runs.
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

const (
	// LoggerKey holds the per-request *slog.Logger.
	LoggerKey contextKey = "shield_logger"

	// FlashKey holds the *FlashMessage read from the flash cookie.
	FlashKey contextKey = "shield_flash"
)

// Options tunes DefaultStack. The zero value is usable.
type Options struct {
	// MaxFormBytes caps form-encoded bodies. Default 64 KiB.
	MaxFormBytes int64
	// Bypass lists path prefixes that skip maintenance and rate limiting.
	// Default: /healthz and /static/.
	Bypass []string
	// Headers overrides DefaultHeaders.
	Headers *HeaderConfig
}

func (o *Options) defaults() {
	if o.MaxFormBytes <= 0 {
		o.MaxFormBytes = 64 * 1024
	}
	if o.Bypass == nil {
		o.Bypass = []string{"/healthz", "/static/"}
	}
	if o.Headers == nil {
		h := DefaultHeaders()
		o.Headers = &h
	}
}

// Handles exposes the stateful parts of the stack.
type Handles struct {
	Maintenance *MaintenanceMode
	RateLimiter *RateLimiter
}

// StartReloaders refreshes the maintenance flag and rate limit rules from the
// database until done is closed.
func (h Handles) StartReloaders(done <-chan struct{}) {
	h.Maintenance.StartReloader(done)
	h.RateLimiter.StartReloader(done)
}

// DefaultStack returns the middleware chain for the contacts server, in order:
// Maintenance, HeadToGet, SecurityHeaders, MaxFormBody, TraceID, RateLimiter,
// Flash. db must carry the tables from Schema.
func DefaultStack(db *sql.DB, opts Options) ([]func(http.Handler) http.Handler, Handles) {
	opts.defaults()
	h := Handles{
		Maintenance: NewMaintenanceMode(db, opts.Bypass...),
		RateLimiter: NewRateLimiter(db, opts.Bypass...),
	}
	return []func(http.Handler) http.Handler{
		h.Maintenance.Middleware,
		HeadToGet,
		SecurityHeaders(*opts.Headers),
		MaxFormBody(opts.MaxFormBytes),
		TraceID,
		h.RateLimiter.Middleware,
		Flash,
	}, h
}
