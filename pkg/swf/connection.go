package swf

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrCannotConnect is returned by Send/ReadCommand once a Connection has
// observed its underlying net.Conn disconnect.
var ErrCannotConnect = errors.New("swf: connection disconnected")

// Connection wraps a FramedTransport over a net.Conn with suspend/resume
// semantics: while suspended, outgoing frames queue in memory instead of
// hitting the wire, and are flushed in order on Resume.
type Connection struct {
	mu        sync.Mutex
	conn      net.Conn
	transport *FramedTransport
	suspended bool
	pending   []pendingFrame
	closed    bool

	disconnectOnce sync.Once
	disconnectCh   chan struct{}
}

type pendingFrame struct {
	cmd     Command
	payload interface{}
}

func newConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:         conn,
		transport:    NewFramedTransport(conn),
		disconnectCh: make(chan struct{}),
	}
}

// ConnectTo dials addr and returns a ready Connection.
func ConnectTo(addr string) (*Connection, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	return newConnection(conn), nil
}

// ListenForRemote opens a listener on addr for AcceptNext to consume.
func ListenForRemote(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// AcceptNext accepts the next inbound connection on ln.
func AcceptNext(ln net.Listener) (*Connection, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	return newConnection(conn), nil
}

// Send writes a command frame, or queues it if the Connection is
// suspended. Returns ErrCannotConnect once the peer has disconnected.
func (c *Connection) Send(cmd Command, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCannotConnect
	}
	if c.suspended {
		c.pending = append(c.pending, pendingFrame{cmd: cmd, payload: payload})
		return nil
	}
	if err := c.transport.WriteFrame(cmd, payload); err != nil {
		c.markDisconnectedLocked()
		return fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	return nil
}

// ReadCommand blocks until the next frame arrives and returns it.
func (c *Connection) ReadCommand() (Command, []byte, error) {
	cmd, body, err := c.transport.ReadFrame()
	if err != nil {
		c.mu.Lock()
		c.markDisconnectedLocked()
		c.mu.Unlock()
		return 0, nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	return cmd, body, nil
}

// WaitForIncoming blocks until the disconnect event fires or timeout
// elapses, returning true if the connection is still alive.
func (c *Connection) WaitForIncoming(timeout time.Duration) bool {
	select {
	case <-c.disconnectCh:
		return false
	case <-time.After(timeout):
		return true
	}
}

// Suspend queues future Send calls instead of writing them immediately.
func (c *Connection) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = true
}

// Resume flushes any queued frames in FIFO order and resumes direct
// writes.
func (c *Connection) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.suspended = false
	pending := c.pending
	c.pending = nil

	for _, frame := range pending {
		if err := c.transport.WriteFrame(frame.cmd, frame.payload); err != nil {
			c.markDisconnectedLocked()
			return fmt.Errorf("%w: %v", ErrCannotConnect, err)
		}
	}
	return nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markDisconnectedLocked()
	return c.conn.Close()
}

// markDisconnectedLocked fires the one-shot disconnect event. Caller must
// hold c.mu.
func (c *Connection) markDisconnectedLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.disconnectOnce.Do(func() { close(c.disconnectCh) })
}
