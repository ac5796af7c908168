// Command contacts serves the contacts web application.
//
// Usage:
//
//	contacts -config contacts.yaml      # run with a config file
//	contacts -db contacts.db -seed      # run, filling an empty database with samples
//	contacts -db contacts.db -list ada  # print matching contacts as JSON and exit
//
// Environment (overridden by flags): PORT, DB_PATH, TRACE_DB, OBS_DB,
// LOG_LEVEL, SEED, MCP_HTTP. ENV_FILE, .env.local and .env are loaded first.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/contacts/contacts"
	"github.com/hazyhaar/contacts/dbopen"
	"github.com/hazyhaar/contacts/observability"
	"github.com/hazyhaar/contacts/shell"
	"github.com/hazyhaar/contacts/shield"
	"github.com/hazyhaar/contacts/trace"
)

func main() {
	loadEnvFiles()

	configPath := flag.String("config", "", "path to contacts.yaml config file")
	dbPath := flag.String("db", "", "path to the contacts SQLite database")
	addr := flag.String("addr", "", "listen address (default :8080, or :$PORT)")
	seed := flag.Bool("seed", false, "fill an empty database with sample contacts")
	listQuery := flag.String("list", "", "print contacts matching the query as JSON and exit")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		slog.Error("contacts: config", "error", err)
		os.Exit(1)
	}
	if set["db"] {
		cfg.DBPath = *dbPath
	}
	if set["addr"] {
		cfg.Addr = *addr
	}
	if set["seed"] {
		cfg.Seed = *seed
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	cfg.Defaults()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var list *string
	if set["list"] {
		list = listQuery
	}
	if err := run(ctx, logger, cfg, list, os.Stdout); err != nil {
		logger.Error("contacts: fatal", "error", err)
		os.Exit(1)
	}
}

// loadEnvFiles loads ENV_FILE, .env.local and .env in that order. Variables
// already set win over every file.
func loadEnvFiles() {
	if f := os.Getenv("ENV_FILE"); f != "" {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			slog.Warn("contacts: env file", "path", f, "error", err)
		}
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			slog.Warn("contacts: env file", "path", f, "error", err)
		}
	}
}

// resolveConfig reads the config file, if any, then applies environment
// overrides. Defaults are left to the caller.
func resolveConfig(path string) (*contacts.Config, error) {
	cfg := &contacts.Config{}
	if path != "" {
		var err error
		if cfg, err = contacts.LoadConfigFile(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if port := env("PORT", ""); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.DBPath = env("DB_PATH", cfg.DBPath)
	cfg.TraceDB = env("TRACE_DB", cfg.TraceDB)
	cfg.ObsDB = env("OBS_DB", cfg.ObsDB)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	cfg.Seed = envBool("SEED", cfg.Seed)
	cfg.MCPHTTP = envBool("MCP_HTTP", cfg.MCPHTTP)
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *contacts.Config, list *string, stdout io.Writer) error {
	// Trace DB is opened with the plain driver; tracing the tracer would recurse.
	if cfg.TraceDB != "" {
		traceDB, err := dbopen.Open(cfg.TraceDB, dbopen.WithMkdirAll())
		if err != nil {
			return fmt.Errorf("trace db: %w", err)
		}
		defer traceDB.Close()
		ts := trace.NewStore(traceDB)
		if err := ts.Init(); err != nil {
			return fmt.Errorf("trace init: %w", err)
		}
		trace.SetStore(ts)
		defer func() {
			trace.SetStore(nil)
			ts.Close()
		}()
	}

	opts := []contacts.Option{contacts.WithLogger(logger)}
	var obs *observer
	if cfg.ObsDB != "" {
		var err error
		if obs, err = openObserver(cfg); err != nil {
			return err
		}
		defer obs.Close()
		observability.StartCleanup(ctx, obs.db, cfg.Retention)
		opts = append(opts, contacts.WithEvents(obs.events), contacts.WithMetrics(obs.metrics))
	}

	svc, err := contacts.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if list != nil {
		cs, err := svc.ListContacts(ctx, list)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cs)
	}

	if cfg.Seed {
		n, err := svc.Seed(ctx)
		if err != nil {
			return err
		}
		logger.Info("contacts: seeded", "inserted", n)
	}

	if err := shield.Init(svc.DB()); err != nil {
		return fmt.Errorf("shield init: %w", err)
	}
	stack, handles := shield.DefaultStack(svc.DB(), shield.Options{MaxFormBytes: cfg.Server.MaxFormBytes})
	handles.StartReloaders(ctx.Done())

	var mcpSrv *mcp.Server
	if cfg.MCPHTTP {
		mcpSrv = mcp.NewServer(&mcp.Implementation{Name: "contacts", Version: "1.0.0"}, nil)
		svc.RegisterMCP(mcpSrv)
	}

	var reqLog *observability.RequestLogger
	if obs != nil {
		reqLog = obs.requests
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(svc, stack, reqLog, mcpSrv),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("contacts: listening", "addr", cfg.Addr, "db", cfg.DBPath, "mcp", cfg.MCPHTTP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("contacts: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter assembles the middleware stack and routes. reqLog and mcpSrv
// may be nil.
func newRouter(svc shell.ContactStore, stack []func(http.Handler) http.Handler, reqLog *observability.RequestLogger, mcpSrv *mcp.Server) http.Handler {
	r := chi.NewRouter()
	for _, mw := range stack {
		r.Use(mw)
	}
	if reqLog != nil {
		r.Use(reqLog.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})
	if mcpSrv != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
		r.Handle("/mcp", h)
	}
	shell.NewHandler(svc).Routes(r)
	return r
}

// observer bundles the writers backed by the observability database.
type observer struct {
	db       *sql.DB
	events   *observability.EventLogger
	metrics  *observability.MetricsManager
	requests *observability.RequestLogger
}

func openObserver(cfg *contacts.Config) (*observer, error) {
	db, err := dbopen.Open(cfg.ObsDB, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		return nil, fmt.Errorf("observability db: %w", err)
	}
	mm := observability.NewMetricsManager(db, cfg.Metrics.BufferSize, cfg.Metrics.FlushInterval)
	return &observer{
		db:       db,
		events:   observability.NewEventLogger(db),
		metrics:  mm,
		requests: observability.NewRequestLogger(db, mm),
	}, nil
}

// Close drains the request log and metrics before closing the database.
func (o *observer) Close() error {
	o.requests.Close()
	o.metrics.Close()
	return o.db.Close()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("contacts: ignoring non-boolean env", "key", key, "value", v)
		return def
	}
	return b
}
