package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	mu    sync.Mutex
	posts []post
}

type post struct {
	tag  string
	data map[string]any
}

func (f *fakePoster) Post(tag string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post{tag: tag, data: message.(map[string]any)})
	return nil
}

func TestFluentHandlerPostsFlattenedFields(t *testing.T) {
	poster := &fakePoster{}
	logger := slog.New(NewFluentHandler(poster, slog.LevelInfo)).With("app", "estatecrm")

	ctx := WithTraceID(context.Background(), "trace-1")
	logger.WithGroup("http").InfoContext(ctx, "request finished", "status", 201, "err", errors.New("boom"))
	logger.Debug("dropped")

	require.Len(t, poster.posts, 1)
	got := poster.posts[0]
	assert.Equal(t, "info", got.tag)
	assert.Equal(t, "request finished", got.data["message"])
	assert.Equal(t, "estatecrm", got.data["app"])
	assert.EqualValues(t, 201, got.data["http.status"])
	assert.Equal(t, "boom", got.data["http.err"])
	assert.Equal(t, "trace-1", got.data["trace_id"])
	assert.NotEmpty(t, got.data["timestamp"])
}

func TestFanoutHandlerRespectsEachLevel(t *testing.T) {
	var buf bytes.Buffer
	poster := &fakePoster{}
	stdout := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewFanoutHandler(stdout, NewFluentHandler(poster, slog.LevelWarn)))

	logger.Debug("debug only")
	logger.Warn("both")

	assert.Contains(t, buf.String(), "debug only")
	assert.Contains(t, buf.String(), "both")
	require.Len(t, poster.posts, 1)
	assert.Equal(t, "warn", poster.posts[0].tag)
}

func TestNewWritesWithTint(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Config{Writer: &buf, Level: slog.LevelInfo, NoColor: true, AppName: "estatecrm"})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	logger.Info("console listening", "addr", ":3000")
	assert.Contains(t, buf.String(), "console listening")
	assert.Contains(t, buf.String(), "addr=:3000")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG", slog.LevelInfo))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud", slog.LevelInfo))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, slog.Default(), FromContext(ctx))
	assert.Empty(t, TraceIDFromContext(ctx))

	logger := Discard()
	ctx = WithLogger(WithTraceID(ctx, "abc"), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "abc", TraceIDFromContext(ctx))
}
