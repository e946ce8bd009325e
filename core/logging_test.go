package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LoggingConfig{Level: "info", Format: "json"}, "core")
	logger.SetOutput(&buf)

	logger.Info("Capability registered", map[string]interface{}{
		"operation":  "capability_register",
		"capability": "echo",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Capability registered", entry["message"])
	assert.Equal(t, "core", entry["component"])
	assert.Equal(t, "echo", entry["capability"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestStructuredLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LoggingConfig{Level: "warn", Format: "json"}, "")
	logger.SetOutput(&buf)

	logger.Debug("hidden", nil)
	logger.Info("also hidden", nil)
	assert.Zero(t, buf.Len())

	logger.Warn("visible", nil)
	logger.Error("also visible", nil)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestStructuredLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LoggingConfig{Level: "debug", Format: "text"}, "router")
	logger.SetOutput(&buf)

	logger.Debug("Rule added", map[string]interface{}{"capability": "weather"})

	line := buf.String()
	assert.Contains(t, line, "DEBUG")
	assert.Contains(t, line, "[router]")
	assert.Contains(t, line, "Rule added")
	assert.Contains(t, line, "capability=weather")
}
