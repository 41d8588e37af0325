package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetup_LevelParsing(t *testing.T) {
	Setup("debug")
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	Setup("error")
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}

func TestSetup_UnknownLevelFallsBackToInfo(t *testing.T) {
	Setup("chatty")
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestWithModule(t *testing.T) {
	Setup("info")
	assert.NotNil(t, WithModule("router"))
}
