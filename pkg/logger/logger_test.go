package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLevelMuxHandler_FileGetsInfoAndAbove(t *testing.T) {
	var stdout, file bytes.Buffer
	log := slog.New(NewLevelMuxHandler(&stdout, &file, slog.LevelDebug))

	log.Debug("debug message")
	log.Warn("warn message", slog.String("user_id", "u1"))

	assert.Contains(t, stdout.String(), "debug message")
	assert.Contains(t, stdout.String(), "warn message")
	assert.NotContains(t, file.String(), "debug message")
	assert.Contains(t, file.String(), "warn message")
	assert.Contains(t, file.String(), `"user_id":"u1"`)
}
