package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestComponent_AttachesComponentField(t *testing.T) {
	logger := New(slog.LevelInfo, "json")
	tagged := logger.Component("listener")
	assert.NotSame(t, logger, tagged)
}

func TestSource_AttachesSourceField(t *testing.T) {
	logger := New(slog.LevelInfo, "json")
	tagged := logger.Source("app-logs")
	assert.NotNil(t, tagged)
}
