package swf

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_HoldSuspendsConnectionAndUnholdResumes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	w := NewWorker(WorkerConfig{Protocol: "dfm", Host: "host-a"})
	w.conn = newConnection(client)
	w.state = WorkerRunning

	read := make(chan Command, 1)
	go func() {
		cmd, _, err := w.conn.transport.ReadFrame()
		if err == nil {
			read <- cmd
		}
	}()

	w.Hold("dfm://host-a/file.txt")

	heldURL, held := w.HeldURL()
	assert.True(t, held)
	assert.Equal(t, "dfm://host-a/file.txt", heldURL)

	require.NoError(t, w.conn.Send(CommandCopy, "queued while held"))

	select {
	case <-read:
		t.Fatal("frame must not be written to the wire while held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, w.Unhold())
	_, held = w.HeldURL()
	assert.False(t, held)

	select {
	case cmd := <-read:
		assert.Equal(t, CommandCopy, cmd)
	case <-time.After(time.Second):
		t.Fatal("queued frame was never flushed after Unhold")
	}
}

func TestWorker_IdleForExcludesHeldWorker(t *testing.T) {
	w := NewWorker(WorkerConfig{Protocol: "dfm", Host: "host-a"})
	w.idleSince = time.Now().Add(-time.Minute)

	idle, eligible := w.IdleFor()
	assert.True(t, eligible)
	assert.GreaterOrEqual(t, idle, time.Duration(0))

	w.Hold("dfm://host-a/file.txt")
	_, eligible = w.IdleFor()
	assert.False(t, eligible, "a held worker must not be eligible for idle reaping")

	require.NoError(t, w.Unhold())
	_, eligible = w.IdleFor()
	assert.True(t, eligible, "unholding restores idle-reap eligibility")
}
