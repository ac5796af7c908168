package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/contacts/contacts"
	"github.com/hazyhaar/contacts/observability"
	"github.com/hazyhaar/contacts/shield"
)

func testService(t *testing.T) *contacts.Service {
	t.Helper()
	svc, err := contacts.New(&contacts.Config{DBPath: filepath.Join(t.TempDir(), "contacts.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	if err := shield.Init(svc.DB()); err != nil {
		t.Fatal(err)
	}
	return svc
}

func testRouter(t *testing.T, svc *contacts.Service, reqLog *observability.RequestLogger, mcpSrv *mcp.Server) http.Handler {
	t.Helper()
	stack, _ := shield.DefaultStack(svc.DB(), shield.Options{})
	return newRouter(svc, stack, reqLog, mcpSrv)
}

func TestRouter_HealthAndHeaders(t *testing.T) {
	h := testRouter(t, testService(t), nil, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", w.Code, w.Body.String())
	}
	for header, want := range map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s: got %q, want %q", header, got, want)
		}
	}
	if id := w.Header().Get("X-Trace-ID"); len(id) != 8 {
		t.Errorf("X-Trace-ID = %q, want 8 hex chars", id)
	}
}

func TestRouter_IndexListsSeededContacts(t *testing.T) {
	svc := testService(t)
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	h := testRouter(t, svc, nil, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/?q=love", nil))
	body := w.Body.String()
	if w.Code != http.StatusOK || !strings.Contains(body, "Ada Lovelace") {
		t.Fatalf("GET /?q=love = %d", w.Code)
	}
	if strings.Contains(body, "Hopper") {
		t.Error("search did not filter")
	}
}

func TestRouter_NewContactIsRateLimited(t *testing.T) {
	h := testRouter(t, testService(t), nil, nil)
	form := url.Values{"_action": {"newContact"}}.Encode()

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}
	for i := 0; i < 30; i++ {
		w := post()
		if w.Code != http.StatusFound || !strings.HasSuffix(w.Header().Get("Location"), "/edit") {
			t.Fatalf("create %d = %d %q", i, w.Code, w.Header().Get("Location"))
		}
	}
	w := post()
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("31st create = %d %q, want 303 to /", w.Code, w.Header().Get("Location"))
	}
}

func TestRouter_RequestLog(t *testing.T) {
	svc := testService(t)
	cfg := &contacts.Config{ObsDB: filepath.Join(t.TempDir(), "obs.db")}
	cfg.Defaults()
	obs, err := openObserver(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer obs.db.Close()
	h := testRouter(t, svc, obs.requests, nil)

	for _, p := range []string{"/healthz", "/", "/contacts/nope"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}
	obs.requests.Close()
	obs.metrics.Close()

	var n int
	if err := obs.db.QueryRow(`SELECT COUNT(*) FROM http_request_logs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("request logs = %d, want 3", n)
	}
	var status int
	err = obs.db.QueryRow(`SELECT status_code FROM http_request_logs WHERE path = '/contacts/nope'`).Scan(&status)
	if err != nil || status != http.StatusNotFound {
		t.Errorf("status for unknown contact = %d (%v)", status, err)
	}
}

func TestRouter_MCPMounted(t *testing.T) {
	svc := testService(t)
	srv := mcp.NewServer(&mcp.Implementation{Name: "contacts", Version: "test"}, nil)
	svc.RegisterMCP(srv)

	w := httptest.NewRecorder()
	testRouter(t, svc, nil, srv).ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code == http.StatusNotFound {
		t.Error("/mcp not mounted")
	}

	w = httptest.NewRecorder()
	testRouter(t, svc, nil, nil).ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("/mcp without MCP_HTTP = %d", w.Code)
	}
}

func TestResolveConfig_Env(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.yaml")
	writeFile(t, path, "addr: \":7000\"\ndb_path: file.db\nlog_level: warn\n")

	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "")
	t.Setenv("SEED", "true")
	t.Setenv("MCP_HTTP", "nope")

	cfg, err := resolveConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9090" || cfg.DBPath != "file.db" || cfg.LogLevel != "warn" || !cfg.Seed || cfg.MCPHTTP {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, err := resolveConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestRun_List(t *testing.T) {
	cfg := &contacts.Config{DBPath: filepath.Join(t.TempDir(), "contacts.db")}
	svc, err := contacts.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	svc.Close()

	var out bytes.Buffer
	q := "ada"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run(context.Background(), logger, cfg, &q, &out); err != nil {
		t.Fatal(err)
	}
	var got []contacts.Contact
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if len(got) != 1 || got[0].Last != "Lovelace" {
		t.Errorf("list = %+v", got)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	} {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v", in, got)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
