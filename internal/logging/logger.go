// Package logging provides the process-wide structured logger. Every record is a single JSON object with
// timestamp, level, message, a redacted context object and, for failures, an error object.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is the per-record context. Values should be JSON scalars.
type Fields map[string]any

// Logger is the minimal logging contract every component depends on.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
}

// Config selects level and encoding.
type Config struct {
	Level  string
	Format string
}

// ZapLogger implements Logger and StructuredLogger on top of zap.
// It holds no per-request state and is safe for concurrent use.
type ZapLogger struct {
	z *zap.Logger
}

var _ StructuredLogger = (*ZapLogger)(nil)

// New builds a logger writing errors to stderr and everything else to stdout.
func New(cfg Config) *ZapLogger {
	return NewWithWriters(os.Stdout, os.Stderr, cfg)
}

// NewWithWriters builds a logger over arbitrary sinks. Records at error level and above go to errOut.
func NewWithWriters(out, errOut io.Writer, cfg Config) *ZapLogger {
	level := parseLevel(cfg.Level)

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	}

	stdPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l < zapcore.ErrorLevel
	})
	errPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l >= zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), stdPriority),
		zapcore.NewCore(encoder.Clone(), zapcore.Lock(zapcore.AddSync(errOut)), errPriority),
	)

	return &ZapLogger{z: zap.New(core)}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return &ZapLogger{z: zap.NewNop()}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Zap exposes the underlying zap logger for infrastructure that speaks zap natively.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.z
}

// Sync flushes buffered records.
func (l *ZapLogger) Sync() error {
	return l.z.Sync()
}

func (l *ZapLogger) Debug(msg string, fields Fields) {
	l.write(zapcore.DebugLevel, msg, nil, fields)
}

func (l *ZapLogger) Info(msg string, fields Fields) {
	l.write(zapcore.InfoLevel, msg, nil, fields)
}

func (l *ZapLogger) Warn(msg string, fields Fields) {
	l.write(zapcore.WarnLevel, msg, nil, fields)
}

func (l *ZapLogger) Error(msg string, err error, fields Fields) {
	l.write(zapcore.ErrorLevel, msg, err, fields)
}

func (l *ZapLogger) write(level zapcore.Level, msg string, err error, fields Fields) {
	ce := l.z.Check(level, msg)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, 2)
	if err != nil {
		zf = append(zf, zap.Object("error", errorObject{err: err}))
	}
	zf = append(zf, zap.Object("context", contextObject(Redact(fields))))
	ce.Write(zf...)
}

// contextObject encodes fields with sorted keys so records are stable across runs.
type contextObject Fields

func (c contextObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		zap.Any(k, c[k]).AddTo(enc)
	}
	return nil
}

type errorObject struct {
	err error
}

func (e errorObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	msg := e.err.Error()
	enc.AddString("message", msg)
	if verbose := fmt.Sprintf("%+v", e.err); verbose != msg {
		enc.AddString("stack", verbose)
	}
	return nil
}
