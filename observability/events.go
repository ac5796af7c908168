package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hazyhaar/contacts/idgen"
	"github.com/hazyhaar/contacts/kit"
)

// Contact lifecycle event types.
const (
	EventContactCreated   = "contact.created"
	EventContactUpdated   = "contact.updated"
	EventContactFavorited = "contact.favorited"
	EventContactDeleted   = "contact.deleted"
)

// BusinessEvent is a domain-level event.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string
	EntityID    string
	Action      string
	Details     string // optional JSON
	Success     bool
}

// EventLogger writes business events.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator overrides the event ID generator.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger returns a logger writing to db. A nil db yields a logger
// that only emits slog records.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records event. Errors are logged and swallowed.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	if l == nil {
		return
	}
	slog.InfoContext(ctx, "event",
		"type", event.EventType,
		"entity_id", event.EntityID,
		"success", event.Success,
		"transport", kit.GetTransport(ctx))
	if l.db == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			action, transport, trace_id, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.Action, kit.GetTransport(ctx), kit.GetTraceID(ctx), event.Details, event.Success,
		time.Now().Unix())
	if err != nil {
		slog.Error("observability: event log failed", "error", err, "event_type", event.EventType)
	}
}

// CountEvents returns how many events of eventType were recorded for entityID.
// An empty entityID counts all entities.
func (l *EventLogger) CountEvents(ctx context.Context, eventType, entityID string) (int, error) {
	q := `SELECT COUNT(*) FROM business_event_logs WHERE event_type = ?`
	args := []any{eventType}
	if entityID != "" {
		q += ` AND entity_id = ?`
		args = append(args, entityID)
	}
	var n int
	err := l.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
