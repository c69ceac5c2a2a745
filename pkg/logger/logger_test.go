//go:build !integration

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	Info("auth", "authorization", "Bearer abc", "tab_id", 4)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["authorization"])
	assert.EqualValues(t, 4, fields["tab_id"])
}

func TestInit(t *testing.T) {
	require.NoError(t, Init("development"))
	require.NoError(t, Init("production"))
	Set(zap.NewNop())
}
