// Package trace registers a "sqlite-trace" database/sql driver that wraps
// modernc.org/sqlite and reports every Exec and Query.
//
//	import _ "github.com/hazyhaar/contacts/trace"
//
//	traceDB, _ := dbopen.Open("traces.db") // raw "sqlite" driver
//	store := trace.NewStore(traceDB)
//	store.Init()
//	trace.SetStore(store)
//
//	db, _ := dbopen.Open("contacts.db", dbopen.WithTrace())
//
// Without a store every statement is still logged through slog: Debug for
// normal statements, Warn above SlowThreshold, Error on failure. The request
// trace ID set by shield.TraceID is attached when present.
package trace

import (
	"database/sql"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
)

// SlowThreshold is the duration above which a statement is logged at Warn.
const SlowThreshold = 100 * time.Millisecond

// Entry is a single SQL trace record.
type Entry struct {
	TraceID    string
	Op         string // "Exec" or "Query"
	Query      string
	DurationUs int64
	Error      string
	Timestamp  int64 // unix microseconds
}

// Recorder persists trace entries.
type Recorder interface {
	RecordAsync(e *Entry)
	Close() error
}

var (
	globalStore Recorder
	storeMu     sync.RWMutex
)

// SetStore installs the recorder used by the driver. nil disables
// persistence.
func SetStore(s Recorder) {
	storeMu.Lock()
	globalStore = s
	storeMu.Unlock()
}

func getStore() Recorder {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return globalStore
}

func init() {
	sql.Register("sqlite-trace", &TracingDriver{Driver: &sqlite.Driver{}})
}
