package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LogLevelInfo,
		Format: "json",
		Output: &buf,
	})

	logger.Info("runner.run.complete", "agent", "tester", "rounds", 2)

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "runner.run.complete", entry["msg"])
	assert.Equal(t, "tester", entry["agent"])
	assert.Equal(t, 2.0, entry["rounds"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LogLevelWarn,
		Format: "text",
		Output: &buf,
	})

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "visible"))
}

func TestNoOpLogger(t *testing.T) {
	var logger Logger = NoOpLogger{}

	// Must be safe to call with any arguments.
	logger.Debug("a", "k", 1)
	logger.Info("b")
	logger.Warn("c", "k")
	logger.Error("d", "k", "v")
}
