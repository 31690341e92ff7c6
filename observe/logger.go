package observe

import (
	"context"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// structuredLogger is a zap-backed Logger. The zap core is chosen once at
// construction (console or JSON); every subsequent method call, including
// those produced by With/WithNode, shares the same core.
type structuredLogger struct {
	base *zap.Logger
	mu   *sync.Mutex
}

// NewLogger creates a structured logger writing single-line JSON to
// stderr at the given level. Equivalent to NewLoggerWithFormat(level, "json").
func NewLogger(level string) Logger {
	return NewLoggerWithFormat(level, "json")
}

// NewLoggerWithFormat creates a structured logger with an explicit output
// format: "console" for a colorized human-readable encoder (development),
// or "json" for single-line structured records (production).
func NewLoggerWithFormat(level, format string) Logger {
	return newStructuredLogger(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a JSON structured logger writing to w instead
// of stderr, primarily for tests that need to inspect emitted records.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return newStructuredLogger(level, "json", zapcore.AddSync(w))
}

func newStructuredLogger(level, format string, w zapcore.WriteSyncer) *structuredLogger {
	lvl := ParseLogLevel(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.MessageKey = "msg"

	var encoder zapcore.Encoder
	if format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, w, lvl.zapLevel())
	return &structuredLogger{base: zap.New(core), mu: &sync.Mutex{}}
}

// WithNode returns a logger with node identity fields attached to every
// subsequent record.
func (l *structuredLogger) WithNode(meta NodeMeta) Logger {
	fields := []zap.Field{zap.String("node.id", meta.ID)}
	if meta.Kind != "" {
		fields = append(fields, zap.String("node.kind", meta.Kind))
	}
	if meta.Category != "" {
		fields = append(fields, zap.String("node.category", meta.Category))
	}
	return &structuredLogger{base: l.base.With(fields...), mu: l.mu}
}

// With returns a logger with the given fields attached to every
// subsequent record, independent of any specific node.
func (l *structuredLogger) With(fields ...Field) Logger {
	return &structuredLogger{base: l.base.With(toZapFields(fields)...), mu: l.mu}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *structuredLogger) log(ctx context.Context, level zapcore.Level, msg string, fields []Field) {
	zf := toZapFields(fields)
	if cid := CorrelationIDFromContext(ctx); cid != "" {
		zf = append(zf, zap.String("run_id", cid))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ce := l.base.Check(level, msg); ce != nil {
		ce.Write(zf...)
	}
}

func toZapFields(fields []Field) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if isRedactedField(f.Key) {
			zf = append(zf, zap.String(f.Key, "[REDACTED]"))
			continue
		}
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	return zf
}

// isRedactedField returns true if the field should be redacted.
func isRedactedField(key string) bool {
	redactedKeys := map[string]bool{
		"input":      true,
		"inputs":     true,
		"password":   true,
		"secret":     true,
		"token":      true,
		"api_key":    true,
		"apiKey":     true,
		"credential": true,
	}
	return redactedKeys[key]
}

var _ Logger = (*structuredLogger)(nil)
