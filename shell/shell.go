// Package shell is the contacts page chrome: a sidebar with the search form,
// the New button and the contact list, and a detail pane ("outlet") for the
// selected route.
//
// The same rules render the page on the server (Handler) and in the Go
// client component (View): Build turns loader Data plus the in-flight
// navigation.State into a Page.
package shell

import (
	"context"
	"net/url"

	"github.com/hazyhaar/contacts/contacts"
	"github.com/hazyhaar/contacts/navigation"
)

// NewContactAction is the _action value of the New button's form.
const NewContactAction = "newContact"

// DataProvider is the data the shell loader and root action need.
type DataProvider interface {
	ListContacts(ctx context.Context, q *string) ([]contacts.Contact, error)
	CreateContact(ctx context.Context) (contacts.Contact, error)
}

// Data is the shell loader result.
type Data struct {
	Contacts []contacts.Contact `json:"contacts"`
	Q        *string            `json:"q"`
}

// Load reads q from u (absent means nil) and lists the matching contacts.
func Load(ctx context.Context, p DataProvider, u *url.URL) (Data, error) {
	q := queryParam(u)
	cs, err := p.ListContacts(ctx, q)
	if err != nil {
		return Data{}, err
	}
	if cs == nil {
		cs = []contacts.Contact{}
	}
	return Data{Contacts: cs, Q: q}, nil
}

func queryParam(u *url.URL) *string {
	if u == nil {
		return nil
	}
	vals := u.Query()
	if !vals.Has("q") {
		return nil
	}
	q := vals.Get("q")
	return &q
}

// SearchOptions returns the submit options for a search typed while the
// page shows q: the first search of a session (q nil) pushes a history
// entry, later ones replace it.
func SearchOptions(q *string) navigation.SubmitOptions {
	return navigation.SubmitOptions{Replace: q != nil}
}

// IsSubmittingNew reports whether the in-flight submission is the New form.
func IsSubmittingNew(st navigation.State) bool {
	return st.FormData.Get("_action") == NewContactAction
}

// IsSearching reports whether the pending location carries a q parameter.
func IsSearching(st navigation.State) bool {
	return st.Location != nil && st.Location.Query().Has("q")
}
