package swf

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConnections() (*Connection, *Connection) {
	a, b := net.Pipe()
	return newConnection(a), newConnection(b)
}

func TestConnection_SendAndReadCommand(t *testing.T) {
	client, server := pipeConnections()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = client.Send(CommandCopy, map[string]string{"src": "/a"})
	}()

	cmd, body, err := server.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, CommandCopy, cmd)
	assert.JSONEq(t, `{"src":"/a"}`, string(body))
}

func TestConnection_SuspendQueuesSends(t *testing.T) {
	client, server := pipeConnections()
	defer client.Close()
	defer server.Close()

	client.Suspend()
	sendDone := make(chan error, 1)
	go func() { sendDone <- client.Send(CommandDelete, "x") }()

	select {
	case err := <-sendDone:
		require.NoError(t, err)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("Send should not block while suspended")
	}

	resumeDone := make(chan error, 1)
	go func() { resumeDone <- client.Resume() }()

	cmd, _, err := server.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, CommandDelete, cmd)
	require.NoError(t, <-resumeDone)
}

func TestConnection_CloseFiresDisconnect(t *testing.T) {
	client, server := pipeConnections()
	defer server.Close()

	require.NoError(t, client.Close())
	assert.False(t, client.WaitForIncoming(10*time.Millisecond))
}

func TestConnection_SendAfterCloseErrors(t *testing.T) {
	client, server := pipeConnections()
	defer server.Close()

	require.NoError(t, client.Close())
	err := client.Send(CommandStat, nil)
	assert.ErrorIs(t, err, ErrCannotConnect)
}
