package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorPrependsErrField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := UseCore(core)
	defer restore()

	Error("fetch failed", errors.New("boom"), "op", "chat")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fetch failed", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "chat", fields["op"])
	assert.Contains(t, fields, "err")
}

func TestInfoAndDebugKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := UseCore(core)
	defer restore()

	Debug("hidden", "k", 1)
	Info("shown", "days", 7)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0].Message)
	assert.EqualValues(t, 7, entries[0].ContextMap()["days"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
