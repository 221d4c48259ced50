// Package testutil holds shared test helpers: a logger that records entries
// and a small set of clinical documents with known content.
package testutil

import (
	"sync"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
)

// Entry is one recorded log call. Fields include those inherited through
// With.
type Entry struct {
	Level   string
	Logger  string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the first field named key.
func (e Entry) Field(key string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// RecordingLogger implements logging.Logger and keeps every entry in memory.
// Children created with With or Named share the parent's entries.
type RecordingLogger struct {
	sink   *sink
	name   string
	fields []logging.Field
}

// NewRecordingLogger returns an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{sink: &sink{}}
}

func (l *RecordingLogger) record(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = append(l.sink.entries, Entry{Level: level, Logger: l.name, Message: msg, Fields: all})
}

func (l *RecordingLogger) Debug(msg string, fields ...logging.Field) { l.record("debug", msg, fields) }
func (l *RecordingLogger) Info(msg string, fields ...logging.Field)  { l.record("info", msg, fields) }
func (l *RecordingLogger) Warn(msg string, fields ...logging.Field)  { l.record("warn", msg, fields) }
func (l *RecordingLogger) Error(msg string, fields ...logging.Field) { l.record("error", msg, fields) }

// Fatal records at fatal level and does not exit.
func (l *RecordingLogger) Fatal(msg string, fields ...logging.Field) { l.record("fatal", msg, fields) }

func (l *RecordingLogger) With(fields ...logging.Field) logging.Logger {
	child := *l
	child.fields = append(append([]logging.Field{}, l.fields...), fields...)
	return &child
}

func (l *RecordingLogger) Named(name string) logging.Logger {
	child := *l
	if l.name != "" {
		name = l.name + "." + name
	}
	child.name = name
	return &child
}

// Entries returns a copy of everything recorded so far.
func (l *RecordingLogger) Entries() []Entry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]Entry, len(l.sink.entries))
	copy(out, l.sink.entries)
	return out
}

// Find returns the first entry with the given level and message.
func (l *RecordingLogger) Find(level, msg string) (Entry, bool) {
	for _, e := range l.Entries() {
		if e.Level == level && e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether an entry with level and msg was recorded.
func (l *RecordingLogger) Has(level, msg string) bool {
	_, ok := l.Find(level, msg)
	return ok
}

// Reset drops all recorded entries.
func (l *RecordingLogger) Reset() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = nil
}

var _ logging.Logger = (*RecordingLogger)(nil)

//Personal.AI order the ending
