package navigation

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func u(s string) *url.URL {
	v, _ := url.Parse(s)
	return v
}

func TestHistory(t *testing.T) {
	h := NewHistory(u("/"))
	h.Push(u("/?q=a"))
	h.Replace(u("/?q=ab"))
	h.Push(u("/contacts/1?q=ab"))

	if diff := cmp.Diff([]string{"/", "/?q=ab", "/contacts/1?q=ab"}, h.Entries()); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}

	back, ok := h.Back()
	if !ok || back.String() != "/?q=ab" {
		t.Errorf("Back = %v, %v", back, ok)
	}
	h.Push(u("/contacts/2"))
	if h.Len() != 3 {
		t.Errorf("push after back kept forward entries: %v", h.Entries())
	}
	if _, ok := h.Forward(); ok {
		t.Error("Forward at the end succeeded")
	}
	h.Back()
	h.Back()
	if _, ok := h.Back(); ok {
		t.Error("Back at the start succeeded")
	}
	if got := h.Current().String(); got != "/" {
		t.Errorf("Current = %q", got)
	}
}

func TestHistory_CopiesURLs(t *testing.T) {
	in := u("/?q=x")
	h := NewHistory(in)
	in.RawQuery = "q=y"
	if h.Current().RawQuery != "q=x" {
		t.Error("history aliased caller URL")
	}
}

func TestHistory_PreviousDoesNotMove(t *testing.T) {
	h := NewHistory(&url.URL{Path: "/"})
	if _, ok := h.Previous(); ok {
		t.Error("Previous at the first entry succeeded")
	}
	h.Push(&url.URL{Path: "/contacts/1"})
	prev, ok := h.Previous()
	if !ok || prev.Path != "/" {
		t.Errorf("Previous = %v, %v", prev, ok)
	}
	if h.Current().Path != "/contacts/1" {
		t.Errorf("Previous moved the cursor to %s", h.Current())
	}
}
