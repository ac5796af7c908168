package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/contacts/contacts"
)

// fakeStore is an in-memory ContactStore. Listing keeps insertion order so
// tests control the provider order.
type fakeStore struct {
	mu       sync.Mutex
	contacts []contacts.Contact
	nextID   int
	listErr  error
	lists    []*string     // q of every ListContacts call
	gate     chan struct{} // when set, CreateContact waits for it to close
	created  chan struct{} // when set, CreateContact signals entry
}

func newFakeStore(cs ...contacts.Contact) *fakeStore {
	return &fakeStore{contacts: cs, nextID: 100}
}

func (f *fakeStore) ListContacts(ctx context.Context, q *string) ([]contacts.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []contacts.Contact
	for _, c := range f.contacts {
		if q == nil || *q == "" ||
			strings.Contains(strings.ToLower(c.First), strings.ToLower(*q)) ||
			strings.Contains(strings.ToLower(c.Last), strings.ToLower(*q)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContact(ctx context.Context) (contacts.Contact, error) {
	if f.created != nil {
		f.created <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return contacts.Contact{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := contacts.Contact{ID: fmt.Sprint(f.nextID)}
	f.contacts = append(f.contacts, c)
	return c, nil
}

func (f *fakeStore) index(id string) int {
	for i, c := range f.contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeStore) GetContact(ctx context.Context, id string) (contacts.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(id); i >= 0 {
		return f.contacts[i], nil
	}
	return contacts.Contact{}, contacts.ErrNotFound
}

func (f *fakeStore) UpdateContact(ctx context.Context, id string, u contacts.Update) (contacts.Contact, error) {
	if strings.HasPrefix(u.Avatar, "javascript:") {
		return contacts.Contact{}, fmt.Errorf("%w: avatar: unsafe scheme", contacts.ErrInvalid)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return contacts.Contact{}, contacts.ErrNotFound
	}
	c := &f.contacts[i]
	c.First, c.Last, c.Avatar, c.Twitter, c.Notes = u.First, u.Last, u.Avatar, u.Twitter, u.Notes
	return *c, nil
}

func (f *fakeStore) SetFavorite(ctx context.Context, id string, fav bool) (contacts.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return contacts.Contact{}, contacts.ErrNotFound
	}
	f.contacts[i].Favorite = fav
	return f.contacts[i], nil
}

func (f *fakeStore) DeleteContact(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return contacts.ErrNotFound
	}
	f.contacts = append(f.contacts[:i], f.contacts[i+1:]...)
	return nil
}

var errBoom = errors.New("boom")

func adaBob() *fakeStore {
	return newFakeStore(
		contacts.Contact{ID: "1", First: "Ada"},
		contacts.Contact{ID: "2", First: "Bob"},
	)
}

// --- HTML helpers ---

func parseHTML(t *testing.T, r io.Reader) *html.Node {
	t.Helper()
	doc, err := html.Parse(r)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byID(n *html.Node, id string) *html.Node {
	found := findAll(n, func(n *html.Node) bool {
		v, _ := attr(n, "id")
		return v == id
	})
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func byTag(n *html.Node, tag string) []*html.Node {
	return findAll(n, func(n *html.Node) bool { return n.Data == tag })
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// sidebarLinks returns the contact links of the rendered list.
func sidebarLinks(doc *html.Node) []*html.Node {
	sidebar := byID(doc, "sidebar")
	if sidebar == nil {
		return nil
	}
	var nav *html.Node
	if navs := byTag(sidebar, "nav"); len(navs) > 0 {
		nav = navs[0]
	} else {
		return nil
	}
	return byTag(nav, "a")
}
