// Package logging is the structured logging layer of the clinical pipeline.
// Components depend on the Logger interface; only this package imports zap.
//
// Startup order in cmd/*/main.go:
//
//  1. Load configuration.
//  2. Build a Logger with NewLogger(cfg.Logging) and register it via SetDefault.
//  3. Inject the Logger into the orchestrator and infrastructure adapters.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ─────────────────────────────────────────────────────────────────────────────
// Field
// ─────────────────────────────────────────────────────────────────────────────

// Field is a typed key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// String constructs a Field with a string value.
func String(key, val string) Field { return Field{Key: key, Value: val} }

// Int constructs a Field with an int value.
func Int(key string, val int) Field { return Field{Key: key, Value: val} }

// Int64 constructs a Field with an int64 value.
func Int64(key string, val int64) Field { return Field{Key: key, Value: val} }

// Float64 constructs a Field with a float64 value.
func Float64(key string, val float64) Field { return Field{Key: key, Value: val} }

// Bool constructs a Field with a bool value.
func Bool(key string, val bool) Field { return Field{Key: key, Value: val} }

// Err captures err under the key "error". A nil error is logged as "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any constructs a Field with an arbitrary value.
func Any(key string, val interface{}) Field { return Field{Key: key, Value: val} }

// Duration constructs a Field with a time.Duration value.
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }

// Pipeline field keys shared across components so log queries stay uniform.
const (
	KeyRunID   = "run_id"
	KeyStep    = "step"
	KeySource  = "source"
	KeyDocType = "doc_type"
)

// RunID tags an entry with the pipeline run id.
func RunID(id string) Field { return String(KeyRunID, id) }

// Step tags an entry with the pipeline step name.
func Step(name string) Field { return String(KeyStep, name) }

// Source tags an entry with the document source.
func Source(source string) Field { return String(KeySource, source) }

// DocType tags an entry with the document type.
func DocType(docType string) Field { return String(KeyDocType, docType) }

// ─────────────────────────────────────────────────────────────────────────────
// Logger interface
// ─────────────────────────────────────────────────────────────────────────────

// Logger is the structured logging contract injected into every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs and then exits the process. Startup paths only.
	Fatal(msg string, fields ...Field)
	// With returns a child Logger carrying fields on every entry.
	With(fields ...Field) Logger
	// Named returns a child Logger with name appended to the logger name.
	Named(name string) Logger
}

// ─────────────────────────────────────────────────────────────────────────────
// LogConfig
// ─────────────────────────────────────────────────────────────────────────────

// LogConfig carries the parameters for NewLogger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string `yaml:"level" json:"level" mapstructure:"level"`

	// Format is "json" or "console". Unknown values mean json.
	Format string `yaml:"format" json:"format" mapstructure:"format"`

	// OutputPaths defaults to ["stderr"] so stdout stays free for command output.
	OutputPaths []string `yaml:"output_paths" json:"output_paths" mapstructure:"output_paths"`

	// ErrorOutputPaths receives zap's internal errors. Defaults to ["stderr"].
	ErrorOutputPaths []string `yaml:"error_output_paths" json:"error_output_paths" mapstructure:"error_output_paths"`
}

// ─────────────────────────────────────────────────────────────────────────────
// zapLogger
// ─────────────────────────────────────────────────────────────────────────────

type zapLogger struct {
	z *zap.Logger
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			out = append(out, zap.String(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case int64:
			out = append(out, zap.Int64(f.Key, v))
		case float64:
			out = append(out, zap.Float64(f.Key, v))
		case bool:
			out = append(out, zap.Bool(f.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(f.Key, v))
		case []string:
			out = append(out, zap.Strings(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZapFields(fields)...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, toZapFields(fields)...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, toZapFields(fields)...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZapFields(fields)...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, toZapFields(fields)...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(toZapFields(fields)...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{z: l.z.Named(name)}
}

// ─────────────────────────────────────────────────────────────────────────────
// Construction
// ─────────────────────────────────────────────────────────────────────────────

// ParseLevel converts a level name to a zapcore.Level. It is case-insensitive
// and reports an error for unknown names.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
}

// NewLogger builds a zap-backed Logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	level, _ := ParseLevel(cfg.Level)
	return build(cfg, zap.NewAtomicLevelAt(level))
}

// NewLeveledLogger is NewLogger plus a setter that changes the level of the
// returned logger and of every logger derived from it.
func NewLeveledLogger(cfg LogConfig) (Logger, func(level string) error, error) {
	level, _ := ParseLevel(cfg.Level)
	atom := zap.NewAtomicLevelAt(level)
	l, err := build(cfg, atom)
	if err != nil {
		return nil, nil, err
	}
	set := func(name string) error {
		lvl, err := ParseLevel(name)
		if err != nil {
			return err
		}
		atom.SetLevel(lvl)
		return nil
	}
	return l, set, nil
}

func build(cfg LogConfig, level zap.AtomicLevel) (Logger, error) {
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stderr"}
	}
	if len(cfg.ErrorOutputPaths) == 0 {
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	console := strings.EqualFold(cfg.Format, "console")
	encCfg := zap.NewProductionEncoderConfig()
	encoding := "json"
	if console {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoding = "console"
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := zap.Config{
		Level:            level,
		Development:      console,
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	}.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logging: failed to build zap logger: %w", err)
	}
	return &zapLogger{z: z}, nil
}

// NewDefaultLogger returns an info-level JSON logger on stderr, falling back
// to a no-op logger if zap cannot be built.
func NewDefaultLogger() Logger {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json"})
	if err != nil {
		return NewNopLogger()
	}
	return l
}

// NewLoggerFromCore wraps an existing zapcore.Core, typically an observer in tests.
func NewLoggerFromCore(core zapcore.Core) Logger {
	return &zapLogger{z: zap.New(core, zap.AddCallerSkip(1))}
}

// LogStepDuration logs the completion of a pipeline step with its elapsed time.
// Steps slower than slowStepThreshold are logged at WARN.
func LogStepDuration(l Logger, step string, start time.Time, fields ...Field) {
	elapsed := time.Since(start)
	fields = append(fields, Step(step), Int64("duration_ms", elapsed.Milliseconds()))
	if elapsed > slowStepThreshold {
		l.Warn("pipeline step slow", fields...)
		return
	}
	l.Info("pipeline step completed", fields...)
}

const slowStepThreshold = 5 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Key-value adapter
// ─────────────────────────────────────────────────────────────────────────────

// KVLogger logs with alternating key-value arguments. The pure extraction and
// timeline packages accept this shape so they do not import this package.
type KVLogger struct {
	l Logger
}

// NewKVLogger adapts l. A nil l yields a no-op adapter.
func NewKVLogger(l Logger) KVLogger {
	if l == nil {
		l = NewNopLogger()
	}
	return KVLogger{l: l}
}

func (k KVLogger) Debug(msg string, keysAndValues ...interface{}) { k.l.Debug(msg, kvFields(keysAndValues)...) }
func (k KVLogger) Info(msg string, keysAndValues ...interface{})  { k.l.Info(msg, kvFields(keysAndValues)...) }
func (k KVLogger) Warn(msg string, keysAndValues ...interface{})  { k.l.Warn(msg, kvFields(keysAndValues)...) }
func (k KVLogger) Error(msg string, keysAndValues ...interface{}) { k.l.Error(msg, kvFields(keysAndValues)...) }

// kvFields pairs arguments into Fields. Non-string keys are formatted with
// %v and a dangling key is logged under "extra".
func kvFields(kv []interface{}) []Field {
	fields := make([]Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			fields = append(fields, Any("extra", kv[i]))
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr {
			fields = append(fields, Field{Key: key, Value: err})
			continue
		}
		fields = append(fields, Any(key, kv[i+1]))
	}
	return fields
}

// ─────────────────────────────────────────────────────────────────────────────
// nopLogger
// ─────────────────────────────────────────────────────────────────────────────

type nopLogger struct{}

func (nopLogger) Debug(_ string, _ ...Field) {}
func (nopLogger) Info(_ string, _ ...Field)  {}
func (nopLogger) Warn(_ string, _ ...Field)  {}
func (nopLogger) Error(_ string, _ ...Field) {}
func (nopLogger) Fatal(_ string, _ ...Field) {}
func (n nopLogger) With(_ ...Field) Logger   { return n }
func (n nopLogger) Named(_ string) Logger    { return n }

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger { return nopLogger{} }

// ─────────────────────────────────────────────────────────────────────────────
// Process default
// ─────────────────────────────────────────────────────────────────────────────

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = nopLogger{}
)

// SetDefault replaces the process-wide Logger. Nil is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the process-wide Logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

//Personal.AI order the ending
