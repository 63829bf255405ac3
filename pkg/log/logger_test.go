package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "text", &buf)
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.WithField("url", "http://a/").Info("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "url=")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "JSON", &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.WithField("host", "example.com").Warn("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "example.com", entry["host"])
}

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger("", "", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewLogger_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
		errMsg string
	}{
		{"bad level", "loud", "text", "invalid log level"},
		{"bad format", "info", "xml", "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLogger(tt.level, tt.format, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDiscard(t *testing.T) {
	entry := Discard()
	require.NotNil(t, entry)
	assert.NotPanics(t, func() { entry.Errorf("error %s", "test") })
}
