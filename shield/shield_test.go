package shield

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/contacts/dbopen"
	"github.com/hazyhaar/contacts/kit"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
}

func TestDefaultStack_Headers(t *testing.T) {
	// Every response carries the security headers and a trace ID.
	db := setupDB(t)
	stack, _ := DefaultStack(db, Options{})
	r := chi.NewRouter()
	for _, mw := range stack {
		r.Use(mw)
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if kit.GetTraceID(r.Context()) == "" {
			t.Error("trace ID missing from context")
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("HEAD", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("HEAD / = %d, want 200", w.Code)
	}
	for h, want := range map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "same-origin",
	} {
		if got := w.Header().Get(h); got != want {
			t.Errorf("%s = %q, want %q", h, got, want)
		}
	}
	if id := w.Header().Get(TraceHeader); len(id) != 8 {
		t.Errorf("X-Trace-ID = %q, want 8 hex chars", id)
	}
}

func TestTraceID_ReusesIncoming(t *testing.T) {
	var seen string
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = kit.GetTraceID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceHeader, "nav-0001")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "nav-0001" {
		t.Errorf("trace = %q, want nav-0001", seen)
	}

	req.Header.Set(TraceHeader, "bad id<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad id<script>" || len(seen) != 8 {
		t.Errorf("malformed trace ID reused: %q", seen)
	}
}

func TestMaxFormBody(t *testing.T) {
	h := MaxFormBody(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
		}
	}))

	body := "notes=" + strings.Repeat("x", 64)
	req := httptest.NewRequest("POST", "/contacts/1/edit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized form = %d, want 400", w.Code)
	}
}

func TestFlash_RoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	SetFlash(w, "success", "Contact deleted")
	cookie := w.Result().Cookies()[0]

	var got *FlashMessage
	h := Flash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetFlash(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got == nil || got.Type != "success" || got.Message != "Contact deleted" {
		t.Fatalf("flash = %+v", got)
	}
	if c := w.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("flash cookie not expired: %+v", c)
	}
}

func TestFlash_UntypedIsError(t *testing.T) {
	var got *FlashMessage
	h := Flash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetFlash(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "flash", Value: url.QueryEscape("oops: it broke")})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got == nil || got.Type != "error" || got.Message != "oops: it broke" {
		t.Errorf("flash = %+v", got)
	}
}

func TestRateLimiter_NewContact(t *testing.T) {
	db := setupDB(t)
	rl := NewRateLimiter(db, "/healthz")
	if err := rl.SetRule(context.Background(), "POST /", RateLimitConfig{MaxRequests: 2, WindowSeconds: 60, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	h := rl.Middleware(okHandler())

	post := func(accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/", strings.NewReader("_action=newContact"))
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("Accept", accept)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}
	for i := 0; i < 2; i++ {
		if w := post("text/html"); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	if w := post("text/html"); w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("browser over limit = %d %q", w.Code, w.Header().Get("Location"))
	}
	if w := post("application/json"); w.Code != http.StatusTooManyRequests {
		t.Errorf("json over limit = %d, want 429", w.Code)
	}

	// Unruled endpoints pass.
	req := httptest.NewRequest("GET", "/contacts/1", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET = %d", w.Code)
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	db := setupDB(t)
	rl := NewRateLimiter(db)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.allow("ip", "POST /") {
		t.Fatal("first request blocked")
	}
	for i := 0; i < 30; i++ {
		rl.allow("ip", "POST /")
	}
	if rl.allow("ip", "POST /") {
		t.Fatal("default rule not enforced")
	}
	now = now.Add(61 * time.Second)
	if !rl.allow("ip", "POST /") {
		t.Error("window did not reset")
	}
	rl.gc()
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := ExtractIP(req); got != "192.0.2.1" {
		t.Errorf("RemoteAddr: %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := ExtractIP(req); got != "203.0.113.9" {
		t.Errorf("XFF: %q", got)
	}
}

func TestMaintenance(t *testing.T) {
	db := setupDB(t)
	mm := NewMaintenanceMode(db, "/healthz")
	h := mm.Middleware(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("off: %d", w.Code)
	}

	if err := mm.Set(context.Background(), true, "Back at <noon>"); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/contacts/1", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("on: %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Back at &lt;noon&gt;") {
		t.Errorf("message not escaped in body: %q", w.Body.String())
	}
	if w.Header().Get("Retry-After") != "300" {
		t.Error("Retry-After missing")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("excluded path: %d", w.Code)
	}

	mm.Set(context.Background(), false, "")
	if mm.Active() || mm.Message() != "Back at <noon>" {
		t.Errorf("active=%v message=%q", mm.Active(), mm.Message())
	}
}

func TestMaintenance_MissingTable(t *testing.T) {
	db := dbopen.OpenMemory(t)
	mm := NewMaintenanceMode(db)
	if mm.Active() {
		t.Error("missing table should mean maintenance off")
	}
}
