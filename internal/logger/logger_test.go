package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsAreStructured(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(prev) })

	Warn("origin mismatch", map[string]any{"origin": "https://evil.example", "status": 403})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "origin mismatch", entry["msg"])
	assert.Equal(t, "https://evil.example", entry["origin"])
	assert.Equal(t, float64(403), entry["status"])
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { SetLogger(prev) })

	Debug("noisy", nil)
	assert.Zero(t, buf.Len())
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh...", TruncateID("abcdefghijklmnop"))
	assert.Equal(t, "short", TruncateID("short"))
	assert.Equal(t, "", TruncateID(""))
}
