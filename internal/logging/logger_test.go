package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("loud")
	require.Error(t, err)

	lggr, err := New("debug")
	require.NoError(t, err)
	assert.NotNil(t, lggr)
}

func TestObservedNamedLogger(t *testing.T) {
	lggr, logs := TestObserved(t, zapcore.InfoLevel)
	lggr.Named("dispatch").With("session", "s1").Infow("analyzer finished", "analyzer", "security")
	lggr.Debugw("dropped below level")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "dispatch", entries[0].LoggerName)
	assert.Equal(t, "analyzer finished", entries[0].Message)
	assert.Equal(t, "security", entries[0].ContextMap()["analyzer"])
	assert.Equal(t, "s1", entries[0].ContextMap()["session"])
}

func TestNopIsSilent(t *testing.T) {
	lggr := Nop()
	lggr.Errorw("nothing happens")
	assert.Equal(t, "", lggr.Name())
}
