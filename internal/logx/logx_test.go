package logx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerToLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLoggerTo(&buf, "warn")
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Int("shard", 3).Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "shard=")
	assert.Contains(t, out, "logx_test.go:")
}

func TestNewLoggerBadLevel(t *testing.T) {
	_, err := NewLogger("loud")
	assert.Error(t, err)
}
