package internal

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config{LogFormat: "json", LogLevel: slog.LevelInfo})

	logger.Info("created service account", "name", "test-sa")
	logger.Debug("dropped")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "created service account", record["msg"])
	assert.Equal(t, "test-sa", record["name"])
}

func TestNewLogger_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config{LogFormat: "text", LogLevel: slog.LevelWarn})

	logger.Info("dropped")
	logger.Warn("connection to grafana failed")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "connection to grafana failed")
}
