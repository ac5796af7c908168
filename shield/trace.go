package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/contacts/horosafe"
	"github.com/hazyhaar/contacts/kit"
)

// TraceHeader carries the trace ID on requests and responses.
const TraceHeader = "X-Trace-ID"

// TraceID tags each request with a trace ID, echoes it in the response and
// attaches a per-request logger. A well-formed incoming X-Trace-ID (as sent
// by navigation.Session) is reused so client and server logs line up.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if len(traceID) > 32 || horosafe.ValidateIdentifier(traceID) != nil {
			traceID = newTraceID()
		}

		ctx := kit.WithTraceID(r.Context(), traceID)
		w.Header().Set(TraceHeader, traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request", "remote_addr", r.RemoteAddr)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTraceID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GetLogger returns the per-request logger, or slog.Default outside TraceID.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
