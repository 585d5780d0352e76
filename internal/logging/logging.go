package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

type Config struct {
	Writer    io.Writer
	Level     slog.Level
	JSON      bool
	NoColor   bool
	AppName   string
	AddSource bool

	FluentEnabled bool
	FluentHost    string
	FluentPort    int
	FluentLevel   slog.Level
}

func ConfigFromEnv() Config {
	port, err := strconv.Atoi(envOrDefault("FLUENTBIT_PORT", "24224"))
	if err != nil {
		port = 24224
	}
	return Config{
		Level:         ParseLevel(os.Getenv("LOG_LEVEL"), slog.LevelInfo),
		JSON:          strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		NoColor:       os.Getenv("NO_COLOR") != "",
		AppName:       envOrDefault("APP_NAME", "estatecrm"),
		FluentEnabled: parseBool(os.Getenv("FLUENTBIT_ENABLED")),
		FluentHost:    envOrDefault("FLUENTBIT_HOST", "127.0.0.1"),
		FluentPort:    port,
		FluentLevel:   ParseLevel(os.Getenv("FLUENTBIT_LOG_LEVEL"), slog.LevelInfo),
	}
}

// New builds the process logger. The returned close func flushes the
// fluent client when one is configured.
func New(cfg Config) (*slog.Logger, func() error, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	var stdout slog.Handler
	if cfg.JSON {
		stdout = slog.NewJSONHandler(cfg.Writer, &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource})
	} else {
		stdout = tint.NewHandler(cfg.Writer, &tint.Options{
			Level:      cfg.Level,
			AddSource:  cfg.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    cfg.NoColor,
		})
	}

	closeFn := func() error { return nil }
	handlers := []slog.Handler{stdout}

	if cfg.FluentEnabled {
		client, err := fluent.New(fluent.Config{
			FluentHost: cfg.FluentHost,
			FluentPort: cfg.FluentPort,
			TagPrefix:  cfg.AppName,
			Async:      true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create fluent client: %w", err)
		}
		handlers = append(handlers, NewFluentHandler(client, cfg.FluentLevel))
		closeFn = client.Close
	}

	var handler slog.Handler = stdout
	if len(handlers) > 1 {
		handler = NewFanoutHandler(handlers...)
	}
	logger := slog.New(handler).With("app", cfg.AppName)
	return logger, closeFn, nil
}

func ParseLevel(raw string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// Discard is a logger for tests and callers that were given none.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceIDKey
)

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request logger, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
