package shell

import (
	"net/url"
	"strings"

	"github.com/hazyhaar/contacts/contacts"
	"github.com/hazyhaar/contacts/navigation"
)

// Page is the render model of the chrome.
type Page struct {
	SearchAction string // path the search form submits to
	SearchValue  string
	SearchClass  string // "loading" while a search is in flight
	Searching    bool   // search spinner visible

	NewDisabled bool
	NewLabel    string

	Entries     []Entry // empty means the "No contacts" state
	DetailClass string  // "loading" while a non-search navigation loads
}

// Entry is one contact in the sidebar list.
type Entry struct {
	ID       string
	Href     string
	Label    string // "First Last", trimmed
	Named    bool   // false renders the italic "No Name"
	Favorite bool
	Class    string // "active", "pending" or ""; pending while any navigation targets it
	Deleting bool   // delete spinner visible
}

// Build applies the rendering rules to data under the in-flight state st.
// current is the committed location.
func Build(data Data, st navigation.State, current *url.URL) Page {
	searching := IsSearching(st)
	submittingNew := IsSubmittingNew(st)

	p := Page{
		SearchAction: "/",
		Searching:    searching,
		NewDisabled:  submittingNew,
		NewLabel:     "New",
	}
	if current != nil && current.Path != "" {
		p.SearchAction = current.Path
	}
	if data.Q != nil {
		p.SearchValue = *data.Q
	}
	if searching {
		p.SearchClass = "loading"
	}
	if submittingNew {
		p.NewLabel = "loading"
	}
	if st.Phase == navigation.Loading && !searching {
		p.DetailClass = "loading"
	}

	var pendingPath string
	if !st.IsIdle() && st.Location != nil {
		pendingPath = st.Location.Path
	}
	var currentPath string
	if current != nil {
		currentPath = current.Path
	}

	p.Entries = make([]Entry, 0, len(data.Contacts))
	for _, c := range data.Contacts {
		e := entry(c, data.Q)
		switch {
		case pathMatches(currentPath, contactPath(c.ID)):
			e.Class = "active"
		case pendingPath != "" && pathMatches(pendingPath, contactPath(c.ID)):
			e.Class = "pending"
		}
		e.Deleting = st.FormAction != "" && st.FormAction == contactPath(c.ID)+"/destroy"
		p.Entries = append(p.Entries, e)
	}
	return p
}

func entry(c contacts.Contact, q *string) Entry {
	e := Entry{
		ID:       c.ID,
		Href:     contactPath(c.ID),
		Named:    c.First != "" || c.Last != "",
		Favorite: c.Favorite,
	}
	if e.Named {
		e.Label = strings.TrimSpace(c.First + " " + c.Last)
	}
	if q != nil && *q != "" {
		e.Href += "?q=" + url.QueryEscape(*q)
	}
	return e
}

func contactPath(id string) string {
	return "/contacts/" + url.PathEscape(id)
}

// pathMatches reports whether path is to or below it, segment-wise: both
// /contacts/4 and /contacts/4/edit match /contacts/4, /contacts/42 does not.
func pathMatches(path, to string) bool {
	if path == to {
		return true
	}
	return strings.HasPrefix(path, to) && path[len(to)] == '/'
}
