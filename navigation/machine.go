// Package navigation is the client-side navigation runtime of the contacts
// shell: an explicit state machine over the in-flight navigation, a history
// stack, and an HTTP session that drives the server the way a browser with
// form enhancement would.
//
// Only one navigation is live at a time. Starting a new one cancels the
// previous request and makes its results stale (latest navigation wins).
package navigation

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

// Phase is the lifecycle stage of the in-flight navigation.
type Phase int

const (
	Idle Phase = iota
	Loading
	Submitting
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Submitting:
		return "submitting"
	default:
		return "idle"
	}
}

// State describes the in-flight navigation. The zero value is idle.
type State struct {
	Phase      Phase
	Location   *url.URL   // target of the pending navigation
	FormMethod string     // "GET" or "POST" when a form triggered it
	FormAction string     // path the form was submitted to
	FormData   url.Values // submitted fields
}

// IsIdle reports whether nothing is in flight.
func (s State) IsIdle() bool { return s.Phase == Idle }

func (s State) clone() State {
	if s.Location != nil {
		u := *s.Location
		s.Location = &u
	}
	if s.FormData != nil {
		s.FormData = cloneValues(s.FormData)
	}
	return s
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// ErrSuperseded is returned by a navigation replaced by a newer one before
// it completed.
var ErrSuperseded = errors.New("navigation: superseded")

// Ticket identifies one navigation started on a Machine.
type Ticket uint64

// Machine owns the navigation state. Transitions are serialized and every
// subscriber sees them in order. Subscribers run synchronously and must not
// start navigations from the callback.
type Machine struct {
	notifyMu sync.Mutex // held while subscribers run

	mu      sync.Mutex
	state   State
	seq     Ticket
	cancel  context.CancelFunc
	subs    map[int]func(State)
	nextSub int
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{subs: make(map[int]func(State))}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe registers fn for every transition and returns a function
// removing it.
func (m *Machine) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Begin starts a navigation in state next, cancelling the one in flight.
// The returned context is cancelled when a later navigation begins.
func (m *Machine) Begin(ctx context.Context, next State) (context.Context, Ticket) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.seq++
	t := m.seq
	m.cancel = cancel
	m.state = next.clone()
	m.mu.Unlock()

	m.notify()
	return ctx, t
}

// Advance moves navigation t to next. It returns ErrSuperseded when t is no
// longer the live navigation, leaving the state untouched.
func (m *Machine) Advance(t Ticket, next State) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if t != m.seq {
		m.mu.Unlock()
		return ErrSuperseded
	}
	m.state = next.clone()
	m.mu.Unlock()

	m.notify()
	return nil
}

// Finish returns to idle if t is still the live navigation.
func (m *Machine) Finish(t Ticket) error {
	return m.Complete(t, nil)
}

// Complete runs commit and returns to idle, both only if t is still the
// live navigation. No navigation can begin while commit runs, so a
// superseded navigation never commits. commit must not call back into m.
func (m *Machine) Complete(t Ticket, commit func()) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if t != m.seq {
		m.mu.Unlock()
		return ErrSuperseded
	}
	if commit != nil {
		commit()
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = State{}
	m.mu.Unlock()

	m.notify()
	return nil
}

// Current reports whether t is the live navigation.
func (m *Machine) Current(t Ticket) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t == m.seq
}

// notify runs the subscribers with the current state. Callers hold notifyMu.
func (m *Machine) notify() {
	m.mu.Lock()
	st := m.state
	fns := make([]func(State), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(st.clone())
	}
}
