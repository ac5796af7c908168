package shield

import (
	"context"
	"database/sql"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const defaultMaintenanceMessage = "Contacts is down for maintenance."

// MaintenanceMode answers 503 to everything but the excluded prefixes while
// the maintenance row is active. The flag is cached and reloaded from the
// database.
type MaintenanceMode struct {
	db      *sql.DB
	active  atomic.Bool
	message atomic.Value // string
	exclude []string
}

// NewMaintenanceMode reads the current flag from db. A missing table or row
// means maintenance is off.
func NewMaintenanceMode(db *sql.DB, excludePrefixes ...string) *MaintenanceMode {
	m := &MaintenanceMode{db: db, exclude: excludePrefixes}
	m.message.Store(defaultMaintenanceMessage)
	m.reload()
	return m
}

// Active reports whether maintenance is on.
func (m *MaintenanceMode) Active() bool { return m.active.Load() }

// Message is the text shown on the maintenance page.
func (m *MaintenanceMode) Message() string {
	s, _ := m.message.Load().(string)
	return s
}

// Set stores the flag and applies it immediately. An empty message keeps the
// current one.
func (m *MaintenanceMode) Set(ctx context.Context, active bool, message string) error {
	if message == "" {
		message = m.Message()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO maintenance (id, active, message) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET active = excluded.active, message = excluded.message`,
		active, message)
	if err != nil {
		return fmt.Errorf("maintenance: set: %w", err)
	}
	m.reload()
	return nil
}

// StartReloader polls the flag every 5 seconds until done is closed.
func (m *MaintenanceMode) StartReloader(done <-chan struct{}) {
	tick := time.NewTicker(5 * time.Second)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				m.reload()
			}
		}
	}()
}

func (m *MaintenanceMode) reload() {
	var active bool
	var message string
	err := m.db.QueryRow(`SELECT active, message FROM maintenance WHERE id = 1`).Scan(&active, &message)
	if err != nil {
		m.active.Store(false)
		return
	}
	if message != "" {
		m.message.Store(message)
	}
	if was := m.active.Swap(active); was != active {
		slog.Warn("maintenance: mode changed", "active", active, "message", message)
	}
}

var maintenancePage = template.Must(template.New("maintenance").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Maintenance</title></head>
<body><h1>Maintenance</h1><p>{{.}}</p></body>
</html>`))

// Middleware blocks requests with a 503 page while maintenance is active.
func (m *MaintenanceMode) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.active.Load() {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range m.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Retry-After", "300")
		w.WriteHeader(http.StatusServiceUnavailable)
		maintenancePage.Execute(w, m.Message())
	})
}
