// Package logging provides structured logging with zap.
package logging

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"

	// RequestIDHeader carries the request ID between client and server.
	RequestIDHeader = "X-Request-ID"
)

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr, or file path
}

// Init initializes the global logger.
func Init(cfg Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	globalLevel.SetLevel(level)
	config.Level = globalLevel
	if cfg.OutputPath != "" {
		config.OutputPaths = []string{cfg.OutputPath}
	}

	logger, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	SetLogger(logger)
	return nil
}

// SetLogger replaces the global logger.
func SetLogger(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = logger
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// SetLevel changes the global log level at runtime.
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return
	}
	globalLevel.SetLevel(l)
}

// L returns the global logger, building a production logger on first use.
func L() *zap.Logger {
	mu.RLock()
	logger := globalLogger
	mu.RUnlock()
	if logger != nil {
		return logger
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		config := zap.NewProductionConfig()
		config.Level = globalLevel
		built, err := config.Build(zap.AddCallerSkip(1))
		if err != nil {
			built = zap.NewNop()
		}
		globalLogger = built
	}
	return globalLogger
}

// WithContext returns the logger stored in ctx, or the global logger.
func WithContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return L()
}

// WithRequestID returns a context whose logger and request ID carry requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	logger := WithContext(ctx).With(zap.String("request_id", requestID))
	ctx = context.WithValue(ctx, loggerKey, logger)
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// NewRequestID returns a fresh request ID.
func NewRequestID() string {
	return uuid.NewString()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Transport is an http.RoundTripper that tags outgoing requests with a
// request ID and logs them. The ID comes from the request header, then the
// request context, and is generated when neither has one.
type Transport struct {
	Base http.RoundTripper // nil means http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = GetRequestID(ctx)
		if requestID == "" {
			requestID = NewRequestID()
		}
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(ctx)
		req.Header.Set(RequestIDHeader, requestID)
	}
	logger := WithContext(ctx)
	if GetRequestID(ctx) != requestID {
		logger = logger.With(zap.String("request_id", requestID))
	}

	start := time.Now()
	logger.Debug("request started",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)

	resp, err := base.RoundTrip(req)
	if err != nil {
		logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int64("size", resp.ContentLength),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func String(key, val string) zap.Field                 { return zap.String(key, val) }
func Int(key string, val int) zap.Field                { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field            { return zap.Int64(key, val) }
func Err(err error) zap.Field                          { return zap.Error(err) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Strings(key string, val []string) zap.Field       { return zap.Strings(key, val) }
