//go:build browser

package shell

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/contacts/shield"
)

// Run with: go test -tags browser ./shell/
func TestBrowser_SearchAndCreate(t *testing.T) {
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no chromium found")
	}

	store := adaBob()
	r := chi.NewRouter()
	r.Use(shield.Flash)
	NewHandler(store).Routes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	u := launcher.New().Bin(bin).Headless(true).MustLaunch()
	browser := rod.New().ControlURL(u).MustConnect()
	defer browser.MustClose()

	page := browser.MustPage(srv.URL + "/").Timeout(10 * time.Second)
	page.MustWaitLoad()

	if n := len(page.MustElements("#sidebar nav a")); n != 2 {
		t.Fatalf("initial entries = %d", n)
	}

	page.MustElement("#q").MustInput("bo")
	page.MustWait(`() => document.querySelectorAll("#sidebar nav a").length === 1`)
	if got := page.MustElement("#sidebar nav a").MustText(); !strings.HasPrefix(got, "Bob") {
		t.Errorf("entry = %q", got)
	}
	if got := page.MustInfo().URL; !strings.HasSuffix(got, "/?q=bo") {
		t.Errorf("url after search = %q", got)
	}

	page.MustElement("#new-form button").MustClick()
	page.MustWaitElementsMoreThan("#contact-form", 0)
	if got := page.MustInfo().URL; !strings.HasSuffix(got, "/contacts/101/edit") {
		t.Errorf("url after New = %q", got)
	}
}
