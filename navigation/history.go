package navigation

import (
	"net/url"
	"sync"
)

// History is a browser-style session history: a stack of locations with a
// cursor. Push drops any forward entries.
type History struct {
	mu      sync.Mutex
	entries []*url.URL
	index   int
}

// NewHistory starts a history at initial.
func NewHistory(initial *url.URL) *History {
	return &History{entries: []*url.URL{copyURL(initial)}}
}

// Push adds u after the current entry.
func (h *History) Push(u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], copyURL(u))
	h.index++
}

// Replace overwrites the current entry with u.
func (h *History) Replace(u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = copyURL(u)
}

// Current returns the current entry.
func (h *History) Current() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyURL(h.entries[h.index])
}

// Previous returns the entry before the cursor without moving it. It
// reports false at the first entry.
func (h *History) Previous() (*url.URL, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return nil, false
	}
	return copyURL(h.entries[h.index-1]), true
}

// Back moves the cursor one entry back. It reports false at the first entry.
func (h *History) Back() (*url.URL, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return copyURL(h.entries[0]), false
	}
	h.index--
	return copyURL(h.entries[h.index]), true
}

// Forward moves the cursor one entry forward. It reports false at the last
// entry.
func (h *History) Forward() (*url.URL, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == len(h.entries)-1 {
		return copyURL(h.entries[h.index]), false
	}
	h.index++
	return copyURL(h.entries[h.index]), true
}

// Len returns the number of entries, forward entries included.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns the entries as strings, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	for i, u := range h.entries {
		out[i] = u.String()
	}
	return out
}

func copyURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{Path: "/"}
	}
	c := *u
	if u.User != nil {
		uu := *u.User
		c.User = &uu
	}
	return &c
}
