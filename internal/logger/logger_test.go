package logger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestLogger_WithOperation(t *testing.T) {
	log, logs := newObservedLogger()

	op := log.WithOperation("startup")
	op.Info("ready")

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "startup", fields["operation"])
	assert.NotEmpty(t, fields["correlation_id"])
	assert.Contains(t, fields, "start_time")

	// Separate operations get separate correlation ids.
	log.WithOperation("startup").Info("ready again")
	other := logs.All()[1].ContextMap()
	assert.NotEqual(t, fields["correlation_id"], other["correlation_id"])
}

func TestLogger_LogError(t *testing.T) {
	log, logs := newObservedLogger()

	log.LogError("trade rejected", fmt.Errorf("venue unavailable"),
		zap.String("session_id", "abc"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "venue unavailable", fields["error"])
	assert.Equal(t, "abc", fields["session_id"])

	// A nil error still logs, just without the error field.
	log.LogError("no cause", nil)
	assert.NotContains(t, logs.All()[1].ContextMap(), "error")
}
