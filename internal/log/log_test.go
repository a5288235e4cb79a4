package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestInitWriter_JSON(t *testing.T) {
	t.Setenv("GO_ENV", "")
	var buf bytes.Buffer
	InitWriter(&buf, "info", "json")

	Debug("hidden")
	With("run", "abc").Info("move started", "samples", 11)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "move started", entry["msg"])
	assert.Equal(t, "abc", entry["run"])
	assert.EqualValues(t, 11, entry["samples"])
}

func TestInitWriter_Text(t *testing.T) {
	t.Setenv("GO_ENV", "")
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "text")

	Debug("sample", "name", "error")
	assert.Contains(t, buf.String(), "msg=sample")
	assert.Contains(t, buf.String(), "name=error")
}

func TestInitWriter_ProductionForcesJSON(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	var buf bytes.Buffer
	InitWriter(&buf, "info", "text")

	Warn("reset")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
