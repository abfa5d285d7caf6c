package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Defaults(t *testing.T) {
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestNewLogger_InvalidOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/proc/definitely/not/writable/log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestZapLogger_FieldsReachTheCore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core)

	l.Info("item processed",
		String("response_id", "r-1"),
		Int("attempt", 2),
		Duration("took", 150*time.Millisecond),
		Bool("escalated", false),
		Err(errors.New("partial: category apoio_social")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "item processed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "r-1", fields["response_id"])
	assert.Equal(t, int64(2), fields["attempt"])
	assert.Equal(t, false, fields["escalated"])
	assert.Equal(t, "partial: category apoio_social", fields["error"])
}

func TestWith_DoesNotMutateParent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	parent := NewLoggerFromCore(core)
	child := parent.With(String("worker_id", "w-3"))

	parent.Info("from parent")
	child.Info("from child")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "worker_id")
	assert.Equal(t, "w-3", entries[1].ContextMap()["worker_id"])
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestDefault_ReplacedBySetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	core, logs := observer.New(zapcore.InfoLevel)
	SetDefault(NewLoggerFromCore(core))
	Default().Info("via default")
	assert.Equal(t, 1, logs.Len())

	// nil is ignored
	SetDefault(nil)
	Default().Info("still works")
	assert.Equal(t, 2, logs.Len())
}

func TestNopLogger_IsSilentAndChainable(t *testing.T) {
	l := NewNopLogger()
	l.With(String("k", "v")).Named("sub").Info("dropped")
}
