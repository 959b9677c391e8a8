package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garc/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"console info", &config.LoggingConfig{Level: "info"}, false},
		{"console debug", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "garc.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garc.log")
	logger, err := New(&config.LoggingConfig{Level: "info", File: path})
	require.NoError(t, err)

	logger.InfoWithFields("getting", map[string]interface{}{"url": "https://gab.com/api/search"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"getting"`)
	assert.Contains(t, string(data), `"url":"https://gab.com/api/search"`)
	assert.Contains(t, string(data), `"app":"garc"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	assert.Same(t, logger, logger.WithError(nil))

	logger.WithField("component", "transport").
		WithError(errors.New("connection reset")).
		InfoWithFields("retrying", map[string]interface{}{
			"attempt": 2,
			"backoff": time.Second,
			"ok":      false,
		})

	output := buf.String()
	assert.Contains(t, output, `"component":"transport"`)
	assert.Contains(t, output, `"error":"connection reset"`)
	assert.Contains(t, output, `"attempt":2`)
	assert.Contains(t, output, `"ok":false`)
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent, err := NewWithWriter(&buf, "info")
	require.NoError(t, err)

	_ = parent.WithField("child", true)
	parent.Info("plain")

	assert.False(t, strings.Contains(buf.String(), "child"))
}

func TestTestLoggerCapturesFields(t *testing.T) {
	log := NewTestLogger()
	log.WithField("query", "maga").WarnWithFields("rate limited", map[string]interface{}{"attempt": 1})
	log.Info("done")

	messages := log.GetMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "WARN", messages[0].Level)
	assert.Equal(t, "maga", messages[0].Fields["query"])
	assert.Equal(t, 1, messages[0].Fields["attempt"])
	assert.True(t, log.HasMessage("done"))
	assert.Equal(t, 1, log.CountMessage("done"))

	log.Clear()
	assert.Empty(t, log.GetMessages())
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.WithField("a", 1).WithError(errors.New("x")).Error("nothing")
	assert.Nil(t, log.GetZerolog())
}

func TestCredentialFieldsAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "info")
	require.NoError(t, err)

	logger.WithField("Password", "hunter2").InfoWithFields("logging in", map[string]interface{}{
		"username": "alice",
		"_token":   "csrf-abc",
	})

	output := buf.String()
	assert.NotContains(t, output, "hunter2")
	assert.NotContains(t, output, "csrf-abc")
	assert.Contains(t, output, `"username":"alice"`)
	assert.Contains(t, output, `"_token":"[redacted]"`)
}
