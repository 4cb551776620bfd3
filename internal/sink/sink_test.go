package sink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logflow/internal/model"
)

func TestRetryable_NilErrStaysNil(t *testing.T) {
	assert.Nil(t, Retryable(nil))
}

func TestRetryable_WrapsAndUnwraps(t *testing.T) {
	base := errors.New("disk full")
	wrapped := Retryable(base)

	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, "disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, base)
}

func TestIsRetryable_PlainErrorIsNotRetryable(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("permanent")))
}

func TestEncodeBatch_NDJSONOnePerLine(t *testing.T) {
	batch := []model.CanonicalLog{
		{Time: 1700000000, Source: "app-logs", Event: "first"},
		{Time: 1700000001, Source: "app-logs", Event: "second"},
	}

	out, err := encodeBatch(batch)
	require.NoError(t, err)

	lines := splitLines(out)
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"first"`)
	assert.Contains(t, string(lines[1]), `"second"`)
}

func TestEncodeBatch_EmptyBatchProducesEmptyOutput(t *testing.T) {
	out, err := encodeBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func splitLines(b []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	out = append(out, b[start:])
	return out
}
