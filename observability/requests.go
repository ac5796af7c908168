package observability

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/contacts/kit"
)

type requestLog struct {
	traceID    string
	method     string
	path       string
	route      string
	status     int
	durationMs int64
	ip         string
	at         int64
}

// RequestLogger persists one http_request_logs row per request and feeds the
// request duration into a MetricsManager.
type RequestLogger struct {
	db      *sql.DB
	metrics *MetricsManager
	ch      chan requestLog
	done    chan struct{}
	once    sync.Once
}

// NewRequestLogger starts the background writer. metrics may be nil.
func NewRequestLogger(db *sql.DB, metrics *MetricsManager) *RequestLogger {
	rl := &RequestLogger{
		db:      db,
		metrics: metrics,
		ch:      make(chan requestLog, 512),
		done:    make(chan struct{}),
	}
	go rl.writeLoop()
	return rl
}

// Middleware measures each request. The route label is the chi route
// pattern, so /contacts/42 and /contacts/43 aggregate together.
func (rl *RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		d := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		rl.metrics.Record(&Metric{
			Name:      MetricRequestDurationMs,
			Timestamp: start,
			Value:     float64(d.Microseconds()) / 1000,
			Labels:    map[string]string{"route": r.Method + " " + route, "status": strconv.Itoa(status)},
			Unit:      "milliseconds",
		})

		select {
		case rl.ch <- requestLog{
			traceID:    kit.GetTraceID(r.Context()),
			method:     r.Method,
			path:       r.URL.Path,
			route:      route,
			status:     status,
			durationMs: d.Milliseconds(),
			ip:         r.RemoteAddr,
			at:         start.Unix(),
		}:
		default:
		}
	})
}

// Close drains queued rows and stops the writer.
func (rl *RequestLogger) Close() error {
	rl.once.Do(func() {
		close(rl.ch)
		<-rl.done
	})
	return nil
}

func (rl *RequestLogger) writeLoop() {
	defer close(rl.done)
	for l := range rl.ch {
		_, err := rl.db.Exec(`
			INSERT INTO http_request_logs (trace_id, method, path, route, status_code, duration_ms, ip_address, created_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			l.traceID, l.method, l.path, l.route, l.status, l.durationMs, l.ip, l.at)
		if err != nil {
			slog.Warn("observability: request log failed", "error", err, "path", l.path)
		}
	}
}
