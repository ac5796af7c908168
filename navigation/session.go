package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/contacts/horosafe"
	"github.com/hazyhaar/contacts/idgen"
)

// Form is a form submission.
type Form struct {
	Method string // "GET" (default) or "POST"
	Action string // path, resolved against the current location; "" means current path
	Data   url.Values
}

// SubmitOptions tunes a submission.
type SubmitOptions struct {
	// Replace overwrites the current history entry instead of pushing.
	Replace bool
}

// Result is the outcome of a completed navigation.
type Result struct {
	Location *url.URL        // final location after redirects
	Status   int             // status of the final loader response
	Data     json.RawMessage // loader data at Location
}

// StatusError is a non-2xx response that ended a navigation.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("navigation: %s %s: %d %s", e.Method, e.URL, e.Code, e.Body)
}

// Runtime is what a view needs from the navigation runtime.
type Runtime interface {
	State() State
	Subscribe(fn func(State)) (unsubscribe func())
	Location() *url.URL
	Submit(ctx context.Context, f Form, opts SubmitOptions) (*Result, error)
}

const maxRedirects = 10

// Session drives a contacts server over HTTP. GET forms and links become
// loading navigations; POST forms are submitting until the action answers,
// then loading while the redirect target's loader data is fetched. Loader
// data is requested with Accept: application/json.
type Session struct {
	*Machine

	base    *url.URL
	client  *http.Client
	history *History
	maxBody int64
	traceID idgen.Generator
	logger  *slog.Logger

	mu   sync.Mutex
	data json.RawMessage
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient sets the client. Its CheckRedirect is replaced: the session
// follows redirects itself.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) {
		cc := *c
		s.client = &cc
	}
}

// WithMaxBody caps loader responses. Default horosafe.MaxResponseBody.
func WithMaxBody(n int64) SessionOption { return func(s *Session) { s.maxBody = n } }

// WithTraceIDs sets the generator for the X-Trace-ID request header.
func WithTraceIDs(gen idgen.Generator) SessionOption { return func(s *Session) { s.traceID = gen } }

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption { return func(s *Session) { s.logger = l } }

// NewSession returns a session rooted at baseURL, e.g. "http://127.0.0.1:8080/".
// The history starts at baseURL's path; call Navigate to load it.
func NewSession(baseURL string, opts ...SessionOption) (*Session, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("navigation: base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("navigation: base URL: %w", horosafe.ErrUnsafeScheme)
	}
	s := &Session{
		Machine: NewMachine(),
		base:    base,
		client:  &http.Client{Timeout: 30 * time.Second},
		maxBody: horosafe.MaxResponseBody,
		traceID: idgen.Prefixed("nav-", idgen.Sequence()),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	start := &url.URL{Path: base.Path, RawQuery: base.RawQuery}
	if start.Path == "" {
		start.Path = "/"
	}
	s.history = NewHistory(start)
	return s, nil
}

// History returns the session history.
func (s *Session) History() *History { return s.history }

// Location returns the current (committed) location, path and query only.
func (s *Session) Location() *url.URL { return s.history.Current() }

// LoaderData returns the loader data of the current location.
func (s *Session) LoaderData() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Navigate loads to (a path with optional query) as a link click would.
func (s *Session) Navigate(ctx context.Context, to string, opts SubmitOptions) (*Result, error) {
	target, err := s.resolve(to)
	if err != nil {
		return nil, err
	}
	ctx, t := s.Begin(ctx, State{Phase: Loading, Location: target})
	return s.load(ctx, t, target, opts.Replace)
}

// Back reloads the previous history entry and moves the cursor onto it once
// its loader data has arrived. A failed or superseded reload leaves the
// cursor where it was.
func (s *Session) Back(ctx context.Context) (*Result, error) {
	u, ok := s.history.Previous()
	if !ok {
		return nil, errors.New("navigation: no previous entry")
	}
	ctx, t := s.Begin(ctx, State{Phase: Loading, Location: u})
	return s.fetchAndCommit(ctx, t, u, func(final *url.URL) {
		s.history.Back()
		if final.String() != u.String() {
			s.history.Replace(final)
		}
	})
}

// Submit sends f. GET forms encode Data into the action's query string,
// replacing any query the action carried.
func (s *Session) Submit(ctx context.Context, f Form, opts SubmitOptions) (*Result, error) {
	method := strings.ToUpper(f.Method)
	if method == "" {
		method = http.MethodGet
	}
	action := f.Action
	if action == "" {
		action = s.Location().Path
	}
	target, err := s.resolve(action)
	if err != nil {
		return nil, err
	}
	pending := State{FormMethod: method, FormAction: target.Path, FormData: f.Data}

	if method == http.MethodGet {
		target.RawQuery = f.Data.Encode()
		pending.Phase = Loading
		pending.Location = target
		ctx, t := s.Begin(ctx, pending)
		return s.load(ctx, t, target, opts.Replace)
	}

	pending.Phase = Submitting
	pending.Location = target
	ctx, t := s.Begin(ctx, pending)

	resp, err := s.do(ctx, method, target, strings.NewReader(f.Data.Encode()))
	if err != nil {
		return nil, s.fail(t, err)
	}
	body, _ := horosafe.LimitedReadAll(resp.Body, s.maxBody)
	resp.Body.Close()

	next := s.Location()
	switch {
	case isRedirect(resp.StatusCode):
		next, err = s.redirectTarget(target, resp)
		if err != nil {
			return nil, s.fail(t, err)
		}
	case resp.StatusCode >= 400:
		return nil, s.fail(t, statusError(method, target, resp.StatusCode, body))
	}

	// The action is done; revalidate while keeping the submission visible.
	pending.Phase = Loading
	pending.Location = next
	if err := s.Advance(t, pending); err != nil {
		return nil, err
	}
	return s.load(ctx, t, next, opts.Replace)
}

// load fetches target's loader data and records it in history.
func (s *Session) load(ctx context.Context, t Ticket, target *url.URL, replace bool) (*Result, error) {
	return s.fetchAndCommit(ctx, t, target, func(final *url.URL) {
		if replace {
			s.history.Replace(final)
		} else {
			s.history.Push(final)
		}
	})
}

func (s *Session) fetchAndCommit(ctx context.Context, t Ticket, target *url.URL, commit func(*url.URL)) (*Result, error) {
	final := target
	for i := 0; ; i++ {
		if i == maxRedirects {
			return nil, s.fail(t, fmt.Errorf("navigation: too many redirects loading %s", target))
		}
		resp, err := s.do(ctx, http.MethodGet, final, nil)
		if err != nil {
			return nil, s.fail(t, err)
		}
		body, rerr := horosafe.LimitedReadAll(resp.Body, s.maxBody)
		resp.Body.Close()

		if isRedirect(resp.StatusCode) {
			if final, err = s.redirectTarget(final, resp); err != nil {
				return nil, s.fail(t, err)
			}
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, s.fail(t, statusError(http.MethodGet, final, resp.StatusCode, body))
		}
		if rerr != nil {
			return nil, s.fail(t, fmt.Errorf("navigation: read %s: %w", final, rerr))
		}

		err = s.Complete(t, func() {
			commit(final)
			s.mu.Lock()
			s.data = body
			s.mu.Unlock()
		})
		if err != nil {
			return nil, err
		}
		return &Result{Location: copyURL(final), Status: resp.StatusCode, Data: body}, nil
	}
}

func (s *Session) do(ctx context.Context, method string, target *url.URL, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.base.ResolveReference(target).String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Trace-ID", s.traceID())
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	s.logger.DebugContext(ctx, "navigation: request", "method", method, "url", target.String())
	return s.client.Do(req)
}

// fail ends navigation t with err, or reports ErrSuperseded if a newer
// navigation took over (its cancellation is what broke the request).
func (s *Session) fail(t Ticket, err error) error {
	if ferr := s.Finish(t); ferr != nil {
		return ErrSuperseded
	}
	return err
}

// resolve turns a path (and query) into a same-origin relative URL.
func (s *Session) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("navigation: %q: %w", ref, err)
	}
	abs := s.base.ResolveReference(s.Location()).ResolveReference(u)
	if abs.Host != s.base.Host || abs.Scheme != s.base.Scheme {
		return nil, fmt.Errorf("navigation: %q leaves %s", ref, s.base.Host)
	}
	return &url.URL{Path: abs.Path, RawQuery: abs.RawQuery}, nil
}

func (s *Session) redirectTarget(from *url.URL, resp *http.Response) (*url.URL, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("navigation: %d from %s without Location", resp.StatusCode, from)
	}
	return s.resolve(loc)
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func statusError(method string, u *url.URL, code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &StatusError{Method: method, URL: u.String(), Code: code, Body: msg}
}
