package swf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramedTransport_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	tr := NewFramedTransport(&buf)

	require.NoError(t, tr.WriteFrame(CommandCopy, map[string]string{"src": "/a", "dst": "/b"}))

	cmd, body, err := tr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, CommandCopy, cmd)
	assert.JSONEq(t, `{"src":"/a","dst":"/b"}`, string(body))
}

func TestFramedTransport_EmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	tr := NewFramedTransport(&buf)

	require.NoError(t, tr.WriteFrame(CommandCancel, nil))

	cmd, body, err := tr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, CommandCancel, cmd)
	assert.Equal(t, "null", string(body))
}

func TestFramedTransport_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	tr := NewFramedTransport(&buf)
	require.NoError(t, tr.WriteFrame(CommandStat, "x"))

	full := buf.Bytes()
	truncated := bytes.NewReader(full[:len(full)-1])
	_, _, err := NewFramedTransport(truncated).ReadFrame()
	assert.Error(t, err)
}
