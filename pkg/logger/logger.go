package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field type
type Field = zapcore.Field

// Level type
type Level = zapcore.Level

const (
	DebugLevel Level = zapcore.DebugLevel
	InfoLevel  Level = zapcore.InfoLevel
	WarnLevel  Level = zapcore.WarnLevel
	ErrorLevel Level = zapcore.ErrorLevel
	FatalLevel Level = zapcore.FatalLevel
)

// Logger interface
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	Named(name string) Logger
	Sync() error
}

// Config defines logger configuration
type Config struct {
	Level         string                 `json:"level" yaml:"level"`
	Encoding      string                 `json:"encoding" yaml:"encoding"`
	OutputPaths   []string               `json:"outputPaths" yaml:"outputPaths"`
	ErrorPaths    []string               `json:"errorPaths" yaml:"errorPaths"`
	MaxSize       int                    `json:"maxSize" yaml:"maxSize"` // MB
	MaxBackups    int                    `json:"maxBackups" yaml:"maxBackups"`
	MaxAge        int                    `json:"maxAge" yaml:"maxAge"` // days
	Compress      bool                   `json:"compress" yaml:"compress"`
	Development   bool                   `json:"development" yaml:"development"`
	InitialFields map[string]interface{} `json:"initialFields" yaml:"initialFields"`
}

type logger struct {
	zap *zap.Logger
}

// Option defines logger option function
type Option func(*Config)

// WithLevel sets logger level
func WithLevel(level string) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithEncoding sets logger encoding
func WithEncoding(encoding string) Option {
	return func(c *Config) {
		c.Encoding = encoding
	}
}

// WithOutputPaths sets logger output paths
func WithOutputPaths(paths []string) Option {
	return func(c *Config) {
		c.OutputPaths = paths
	}
}

// WithErrorPaths sets the paths that receive error-level entries
func WithErrorPaths(paths []string) Option {
	return func(c *Config) {
		c.ErrorPaths = paths
	}
}

// WithInitialFields attaches fields to every entry
func WithInitialFields(fields map[string]interface{}) Option {
	return func(c *Config) {
		for k, v := range fields {
			c.InitialFields[k] = v
		}
	}
}

// FromConfig copies a loaded Config over the defaults. Zero values keep the default.
func FromConfig(src Config) Option {
	return func(c *Config) {
		if src.Level != "" {
			c.Level = src.Level
		}
		if src.Encoding != "" {
			c.Encoding = src.Encoding
		}
		if len(src.OutputPaths) > 0 {
			c.OutputPaths = src.OutputPaths
		}
		if len(src.ErrorPaths) > 0 {
			c.ErrorPaths = src.ErrorPaths
		}
		if src.MaxSize > 0 {
			c.MaxSize = src.MaxSize
		}
		if src.MaxBackups > 0 {
			c.MaxBackups = src.MaxBackups
		}
		if src.MaxAge > 0 {
			c.MaxAge = src.MaxAge
		}
		c.Compress = c.Compress || src.Compress
		c.Development = src.Development
		for k, v := range src.InitialFields {
			c.InitialFields[k] = v
		}
	}
}

// NewLogger creates a new logger instance
func NewLogger(opts ...Option) (Logger, error) {
	cfg := &Config{
		Level:         "info",
		Encoding:      "json",
		OutputPaths:   []string{"stdout", "logs/app.log"},
		ErrorPaths:    []string{"stderr", "logs/error.log"},
		MaxSize:       100,
		MaxBackups:    3,
		MaxAge:        7,
		Compress:      true,
		Development:   false,
		InitialFields: make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	for _, path := range append(cfg.OutputPaths, cfg.ErrorPaths...) {
		if path != "stdout" && path != "stderr" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("can't create log directory: %w", err)
			}
		}
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("can't parse log level: %w", err)
	}

	newEncoder := func() zapcore.Encoder {
		if cfg.Encoding == "json" {
			return zapcore.NewJSONEncoder(encoderConfig)
		}
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	var cores []zapcore.Core
	for _, path := range cfg.OutputPaths {
		cores = append(cores, zapcore.NewCore(newEncoder(), cfg.writer(path), level))
	}
	// error paths only see error and above
	errLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel && level.Enabled(l)
	})
	for _, path := range cfg.ErrorPaths {
		cores = append(cores, zapcore.NewCore(newEncoder(), cfg.writer(path), errLevel))
	}

	options := []zap.Option{
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	}

	if cfg.Development {
		options = append(options, zap.Development())
	}

	if len(cfg.InitialFields) > 0 {
		fields := make([]zap.Field, 0, len(cfg.InitialFields))
		for k, v := range cfg.InitialFields {
			fields = append(fields, zap.Any(k, v))
		}
		options = append(options, zap.Fields(fields...))
	}

	zapLogger := zap.New(
		zapcore.NewTee(cores...),
		options...,
	)

	return &logger{zap: zapLogger}, nil
}

func (c *Config) writer(path string) zapcore.WriteSyncer {
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge,
			Compress:   c.Compress,
		})
	}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &logger{zap: zap.NewNop()}
}

// Various field constructors
func String(key string, val string) Field          { return zap.String(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Any(key string, val interface{}) Field        { return zap.Any(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Stack() Field                                 { return zap.Stack("stacktrace") }

func (l *logger) Debug(msg string, fields ...Field) {
	l.zap.Debug(msg, fields...)
}

func (l *logger) Info(msg string, fields ...Field) {
	l.zap.Info(msg, fields...)
}

func (l *logger) Warn(msg string, fields ...Field) {
	l.zap.Warn(msg, fields...)
}

func (l *logger) Error(msg string, fields ...Field) {
	l.zap.Error(msg, fields...)
}

func (l *logger) Fatal(msg string, fields ...Field) {
	l.zap.Fatal(msg, fields...)
}

func (l *logger) With(fields ...Field) Logger {
	return &logger{zap: l.zap.With(fields...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{zap: l.zap.Named(name)}
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}

type ctxKey string

// RequestIDKey is the context key the API stores request IDs under.
const RequestIDKey ctxKey = "request_id"

// ContextWithRequestID stores a request ID for FromContext.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// FromContext returns l enriched with the request ID carried by ctx, if any.
func FromContext(ctx context.Context, l Logger) Logger {
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return l.With(String("request_id", id))
	}
	return l
}
