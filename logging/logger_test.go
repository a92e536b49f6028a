package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Output: &buf, Level: slog.LevelInfo})

	l.With(ChatID(-100)).Info("replied", Chunks(2), Err(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "msg=replied")
	assert.Contains(t, out, "chat_id=-100")
	assert.Contains(t, out, "chunks=2")
	assert.Contains(t, out, "logger_test.go")
	assert.NotContains(t, out, "/logging/")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Output: &buf, Level: slog.LevelDebug, JSON: true})

	l.Debug("step done", Step("INFO_SELECT"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "step done", rec["msg"])
	assert.Equal(t, "INFO_SELECT", rec["step"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Output: &buf, Level: slog.LevelWarn})

	l.Info("hidden")
	l.Printf("library %s", "noise")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestPrintAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Output: &buf, Level: slog.LevelDebug})

	l.Println("Endpoint:", "getUpdates")
	l.Printf("retrying in %d seconds", 3)

	out := buf.String()
	assert.Contains(t, out, `msg="Endpoint: getUpdates"`)
	assert.Contains(t, out, `msg="retrying in 3 seconds"`)
}

func TestPanicLogsFirst(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Output: &buf, Level: slog.LevelInfo})

	assert.PanicsWithValue(t, "failed to load", func() {
		l.Panic("failed to load", Path("profile.json"))
	})
	assert.Contains(t, buf.String(), "path=profile.json")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
