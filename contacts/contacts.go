// Package contacts is the address book behind the web shell: contact
// storage, search, edits and the MCP tools exposing them.
//
// Usage:
//
//	svc, err := contacts.New(cfg, contacts.WithEvents(events))
//	defer svc.Close()
//	svc.RegisterMCP(mcpServer)
//	shell.NewHandler(svc).Routes(r)
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/contacts/contacts/internal/store"
	"github.com/hazyhaar/contacts/dbopen"
	"github.com/hazyhaar/contacts/horosafe"
	"github.com/hazyhaar/contacts/idgen"
	"github.com/hazyhaar/contacts/kit"
	"github.com/hazyhaar/contacts/observability"
)

// Contact is one address book entry.
type Contact = store.Contact

var (
	// ErrNotFound is returned for unknown contact IDs.
	ErrNotFound = errors.New("contact not found")
	// ErrInvalid wraps field validation failures.
	ErrInvalid = errors.New("invalid contact")
)

// Update carries the editable fields of a contact.
type Update struct {
	First   string `json:"first"`
	Last    string `json:"last"`
	Avatar  string `json:"avatar"`
	Twitter string `json:"twitter"`
	Notes   string `json:"notes"`
}

// Service implements contact operations on SQLite.
type Service struct {
	store   *store.Store
	events  *observability.EventLogger
	metrics *observability.MetricsManager
	newID   idgen.Generator
	logger  *slog.Logger
	notes   *notesCleaner
}

// Option configures a Service.
type Option func(*Service)

// WithEvents records contact lifecycle events.
func WithEvents(el *observability.EventLogger) Option { return func(s *Service) { s.events = el } }

// WithMetrics records list sizes.
func WithMetrics(mm *observability.MetricsManager) Option {
	return func(s *Service) { s.metrics = mm }
}

// WithIDGenerator overrides contact ID generation.
func WithIDGenerator(gen idgen.Generator) Option { return func(s *Service) { s.newID = gen } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New opens the contacts database at cfg.DBPath. With cfg.TraceDB set, the
// database is opened through the sqlite-trace driver, which the caller
// registers by importing package trace.
func New(cfg *Config, opts ...Option) (*Service, error) {
	cfg.Defaults()
	var dbo []dbopen.Option
	if cfg.TraceDB != "" {
		dbo = append(dbo, dbopen.WithTrace())
	}
	st, err := store.Open(cfg.DBPath, dbo...)
	if err != nil {
		return nil, fmt.Errorf("contacts: open: %w", err)
	}
	return newService(st, opts...), nil
}

func newService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		newID:  idgen.Default,
		logger: slog.Default(),
		notes:  defaultCleaner,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DB returns the contacts database handle, shared with the shield tables.
func (s *Service) DB() *sql.DB { return s.store.DB }

// Close closes the database.
func (s *Service) Close() error {
	return s.store.Close()
}

// ListContacts returns the contacts matching q, or all of them when q is nil
// or empty.
func (s *Service) ListContacts(ctx context.Context, q *string) ([]Contact, error) {
	var query string
	if q != nil {
		query = strings.TrimSpace(*q)
	}
	rows, err := s.store.ListContacts(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	out := make([]Contact, len(rows))
	for i, c := range rows {
		out[i] = *c
	}
	s.metrics.Record(&observability.Metric{
		Name:      observability.MetricContactsListed,
		Timestamp: time.Now(),
		Value:     float64(len(out)),
		Labels:    map[string]string{"search": fmt.Sprint(query != "")},
		Unit:      "count",
	})
	return out, nil
}

// CreateContact stores an empty contact and returns it with its new ID.
func (s *Service) CreateContact(ctx context.Context) (Contact, error) {
	return s.CreateContactWith(ctx, Update{})
}

// CreateContactWith validates u and stores a contact holding its fields.
// Nothing is stored when u is invalid.
func (s *Service) CreateContactWith(ctx context.Context, u Update) (Contact, error) {
	u, err := s.normalize(u)
	if err != nil {
		return Contact{}, err
	}
	c := &Contact{ID: s.newID()}
	u.apply(c)
	if err := s.store.InsertContact(ctx, c); err != nil {
		return Contact{}, fmt.Errorf("contacts: create: %w", err)
	}
	s.event(ctx, observability.EventContactCreated, c.ID, "create")
	return *c, nil
}

// GetContact returns the contact with id.
func (s *Service) GetContact(ctx context.Context, id string) (Contact, error) {
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return Contact{}, ErrNotFound
	}
	c, err := s.store.GetContact(ctx, id)
	if err != nil {
		return Contact{}, fmt.Errorf("contacts: get: %w", err)
	}
	if c == nil {
		return Contact{}, ErrNotFound
	}
	return *c, nil
}

// UpdateContact validates u and overwrites the contact's editable fields.
// The favorite flag is left untouched.
func (s *Service) UpdateContact(ctx context.Context, id string, u Update) (Contact, error) {
	c, err := s.GetContact(ctx, id)
	if err != nil {
		return Contact{}, err
	}

	if u, err = s.normalize(u); err != nil {
		return Contact{}, err
	}
	u.apply(&c)

	ok, err := s.store.UpdateContact(ctx, &c)
	if err != nil {
		return Contact{}, fmt.Errorf("contacts: update: %w", err)
	}
	if !ok {
		return Contact{}, ErrNotFound
	}
	s.event(ctx, observability.EventContactUpdated, id, "update")
	return c, nil
}

// normalize trims and validates u and cleans its notes. Failures wrap
// ErrInvalid.
func (s *Service) normalize(u Update) (Update, error) {
	u.First = strings.TrimSpace(u.First)
	u.Last = strings.TrimSpace(u.Last)
	u.Avatar = strings.TrimSpace(u.Avatar)
	if u.Avatar != "" {
		if err := horosafe.ValidateLinkURL(u.Avatar); err != nil {
			return Update{}, fmt.Errorf("%w: avatar: %v", ErrInvalid, err)
		}
	}
	u.Twitter = strings.TrimPrefix(strings.TrimSpace(u.Twitter), "@")
	if u.Twitter != "" {
		if err := horosafe.ValidateIdentifier(u.Twitter); err != nil {
			return Update{}, fmt.Errorf("%w: twitter: %v", ErrInvalid, err)
		}
	}
	notes, err := s.notes.Clean(u.Notes)
	if err != nil {
		return Update{}, fmt.Errorf("%w: notes: %v", ErrInvalid, err)
	}
	u.Notes = notes
	return u, nil
}

func (u Update) apply(c *Contact) {
	c.First, c.Last, c.Avatar, c.Twitter, c.Notes = u.First, u.Last, u.Avatar, u.Twitter, u.Notes
}

// SetFavorite sets the favorite flag and returns the updated contact.
func (s *Service) SetFavorite(ctx context.Context, id string, favorite bool) (Contact, error) {
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return Contact{}, ErrNotFound
	}
	ok, err := s.store.SetFavorite(ctx, id, favorite)
	if err != nil {
		return Contact{}, fmt.Errorf("contacts: favorite: %w", err)
	}
	if !ok {
		return Contact{}, ErrNotFound
	}
	s.event(ctx, observability.EventContactFavorited, id, fmt.Sprintf("favorite=%t", favorite))
	return s.GetContact(ctx, id)
}

// DeleteContact removes the contact with id.
func (s *Service) DeleteContact(ctx context.Context, id string) error {
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return ErrNotFound
	}
	ok, err := s.store.DeleteContact(ctx, id)
	if err != nil {
		return fmt.Errorf("contacts: delete: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	s.event(ctx, observability.EventContactDeleted, id, "delete")
	return nil
}

func (s *Service) event(ctx context.Context, typ, id, action string) {
	if a := kit.GetAction(ctx); a != "" {
		action = a
	}
	s.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   typ,
		ServiceName: "contacts",
		EntityType:  "contact",
		EntityID:    id,
		Action:      action,
		Success:     true,
	})
}
