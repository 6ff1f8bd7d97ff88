package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "app.log")

	log, err := NewLogger(
		WithLevel("debug"),
		WithEncoding("json"),
		WithOutputPaths([]string{path}),
		WithErrorPaths(nil),
	)
	require.NoError(t, err)

	log.Named("native").Info("extracted", String("file", "cv.pdf"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"extracted"`)
	assert.Contains(t, string(data), `"logger":"native"`)
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"), WithOutputPaths([]string{"stdout"}), WithErrorPaths(nil))
	assert.Error(t, err)
}

func TestFromConfigKeepsDefaults(t *testing.T) {
	cfg := &Config{Level: "info", Encoding: "json", MaxSize: 100, InitialFields: map[string]interface{}{}}
	FromConfig(Config{Level: "warn"})(cfg)
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, 100, cfg.MaxSize)
}

func TestTestLoggerSharesEntriesAcrossChildren(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("ocr").With(String("k", "v"))
	child.Warn("fallback")
	tl.Info("root")

	entries := tl.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "ocr", entries[0].Logger)
	assert.Len(t, entries[0].Fields, 1)
	assert.True(t, tl.Contains("WARN", "fallback"))

	tl.Clear()
	assert.Empty(t, tl.GetEntries())
}

func TestFromContextAddsRequestID(t *testing.T) {
	tl := NewTestLogger()
	ctx := ContextWithRequestID(context.Background(), "req-1")
	FromContext(ctx, tl).Info("hello")

	entries := tl.GetEntries()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Fields, 1)
	assert.Equal(t, "request_id", entries[0].Fields[0].Key)
}
