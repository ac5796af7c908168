package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/contacts/contacts"
	"github.com/hazyhaar/contacts/horosafe"
	"github.com/hazyhaar/contacts/kit"
	"github.com/hazyhaar/contacts/navigation"
	"github.com/hazyhaar/contacts/shield"
)

// ContactStore is the full set of contact operations behind the routes.
type ContactStore interface {
	DataProvider
	GetContact(ctx context.Context, id string) (contacts.Contact, error)
	UpdateContact(ctx context.Context, id string, u contacts.Update) (contacts.Contact, error)
	SetFavorite(ctx context.Context, id string, favorite bool) (contacts.Contact, error)
	DeleteContact(ctx context.Context, id string) error
}

// Handler serves the contacts pages.
type Handler struct {
	store ContactStore
}

// NewHandler returns a Handler over store.
func NewHandler(store ContactStore) *Handler {
	return &Handler{store: store}
}

// Routes mounts the pages, the static assets and the error boundary on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/", h.handleRootAction)
	r.Route("/contacts/{id}", func(r chi.Router) {
		r.Get("/", h.handleContact)
		r.Post("/", h.handleFavorite)
		r.Get("/edit", h.handleEdit)
		r.Post("/edit", h.handleEditSubmit)
		r.Post("/destroy", h.handleDestroy)
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(Static())))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, r, contacts.ErrNotFound)
	})
}

// loaderJSON is the loader data sent to navigation runtimes.
type loaderJSON struct {
	Data
	Contact *contacts.Contact `json:"contact,omitempty"`
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// serve runs the shell loader and writes either loader JSON or the page.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, status int, name string, vm viewModel) {
	data, err := Load(r.Context(), h.store, r.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, status, loaderJSON{Data: data, Contact: vm.Contact})
		return
	}
	vm.Page = Build(data, navigation.State{}, r.URL)
	vm.Flash = shield.GetFlash(r.Context())

	var buf bytes.Buffer
	if err := renderPage(&buf, name, vm); err != nil {
		shield.GetLogger(r.Context()).Error("shell: render", "page", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, http.StatusOK, "index", viewModel{})
}

// handleRootAction creates an empty contact when the New form is submitted.
// Any other POST to / is treated as a plain navigation home.
func (h *Handler) handleRootAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if r.PostForm.Get("_action") != NewContactAction {
		target := "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	ctx := kit.WithAction(r.Context(), NewContactAction)
	c, err := h.store.CreateContact(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, contactPath(c.ID)+"/edit", http.StatusFound)
}

// contact loads the {id} route parameter. It writes the error response and
// returns false when the contact cannot be served.
func (h *Handler) contact(w http.ResponseWriter, r *http.Request) (contacts.Contact, bool) {
	id := chi.URLParam(r, "id")
	if err := horosafe.ValidateIdentifier(id); err != nil {
		h.fail(w, r, contacts.ErrNotFound)
		return contacts.Contact{}, false
	}
	c, err := h.store.GetContact(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return contacts.Contact{}, false
	}
	return c, true
}

func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	c, ok := h.contact(w, r)
	if !ok {
		return
	}
	h.serve(w, r, http.StatusOK, "contact", viewModel{Title: displayName(c), Contact: &c})
}

func (h *Handler) handleFavorite(w http.ResponseWriter, r *http.Request) {
	c, ok := h.contact(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, err)
		return
	}
	var fav bool
	switch r.PostForm.Get("favorite") {
	case "true":
		fav = true
	case "false":
	default:
		h.badRequest(w, r, errors.New(`favorite must be "true" or "false"`))
		return
	}
	if _, err := h.store.SetFavorite(r.Context(), c.ID, fav); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, r.URL.RequestURI(), http.StatusSeeOther)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.contact(w, r)
	if !ok {
		return
	}
	h.serve(w, r, http.StatusOK, "edit", viewModel{Title: "Edit " + displayName(c), Contact: &c})
}

func (h *Handler) handleEditSubmit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.contact(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, err)
		return
	}
	u := contacts.Update{
		First:   r.PostForm.Get("first"),
		Last:    r.PostForm.Get("last"),
		Avatar:  r.PostForm.Get("avatar"),
		Twitter: r.PostForm.Get("twitter"),
		Notes:   r.PostForm.Get("notes"),
	}
	if _, err := h.store.UpdateContact(r.Context(), c.ID, u); err != nil {
		if errors.Is(err, contacts.ErrInvalid) {
			c.First, c.Last, c.Avatar, c.Twitter, c.Notes = u.First, u.Last, u.Avatar, u.Twitter, u.Notes
			h.serve(w, r, http.StatusUnprocessableEntity, "edit", viewModel{
				Title:     "Edit " + displayName(c),
				Contact:   &c,
				FormError: err.Error(),
			})
			return
		}
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, contactPath(c.ID), http.StatusSeeOther)
}

func (h *Handler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := horosafe.ValidateIdentifier(id); err != nil {
		h.fail(w, r, contacts.ErrNotFound)
		return
	}
	if err := h.store.DeleteContact(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	shield.SetFlash(w, "success", "Contact deleted")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail is the error boundary: unknown contacts and routes get a 404 page,
// anything else is logged and gets a 500 page, both inside the chrome.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	pe := &pageError{
		Status:  http.StatusInternalServerError,
		Title:   "Something went wrong",
		Message: "The request could not be completed. Try again in a moment.",
	}
	if errors.Is(err, contacts.ErrNotFound) {
		pe = &pageError{
			Status:  http.StatusNotFound,
			Title:   "Not found",
			Message: "There is nothing at " + r.URL.Path + ".",
		}
	} else {
		shield.GetLogger(r.Context()).Error("shell: request failed", "error", err)
	}
	h.errorPage(w, r, pe)
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	shield.GetLogger(r.Context()).Warn("shell: bad request", "error", err)
	h.errorPage(w, r, &pageError{
		Status:  http.StatusBadRequest,
		Title:   "Bad request",
		Message: "The submitted form could not be read.",
	})
}

func (h *Handler) errorPage(w http.ResponseWriter, r *http.Request, pe *pageError) {
	if wantsJSON(r) {
		writeJSON(w, pe.Status, map[string]string{"error": pe.Title})
		return
	}
	data, err := Load(r.Context(), h.store, r.URL)
	if err != nil {
		// The chrome itself cannot load; fall back to a bare page.
		slog.Error("shell: error page loader", "error", err)
		http.Error(w, pe.Title, pe.Status)
		return
	}
	var buf bytes.Buffer
	vm := viewModel{Title: pe.Title, Page: Build(data, navigation.State{}, r.URL), Error: pe}
	if err := renderPage(&buf, "error", vm); err != nil {
		http.Error(w, pe.Title, pe.Status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(pe.Status)
	w.Write(buf.Bytes())
}

func displayName(c contacts.Contact) string {
	if n := strings.TrimSpace(c.First + " " + c.Last); n != "" {
		return n
	}
	return "No Name"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
