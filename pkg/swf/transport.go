package swf

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Command identifies the operation a Job performs. Numeric values are
// stable on the wire.
type Command uint16

const (
	CommandCopy   Command = 1
	CommandDelete Command = 2
	CommandList   Command = 3
	CommandStat   Command = 4
	CommandMkdir  Command = 5
	CommandCancel Command = 6
)

// ErrorKind is a stable numeric error classification reported back by a
// worker when a Job fails.
type ErrorKind uint16

const (
	ErrorKindNone           ErrorKind = 0
	ErrorKindNotFound       ErrorKind = 1
	ErrorKindPermission     ErrorKind = 2
	ErrorKindExists         ErrorKind = 3
	ErrorKindCannotConnect  ErrorKind = 4
	ErrorKindIO             ErrorKind = 5
	ErrorKindCanceled       ErrorKind = 6
	ErrorKindInternal       ErrorKind = 7
)

// JobFlags is a bitmask of Job modifiers.
type JobFlags uint32

const (
	FlagOverwrite JobFlags = 1 << 0
	FlagResume    JobFlags = 1 << 1
	FlagRecursive JobFlags = 1 << 2
)

// transportFrameHeaderSize is the fixed 10-byte frame header shared with
// the dispatcher package's wire format: Command uint16, PayloadLength
// uint32, reserved uint32, little-endian.
const transportFrameHeaderSize = 10

// FramedTransport reads and writes length-prefixed frames over an
// underlying io.ReadWriter (typically a net.Conn). Each direction is used
// by a single producer and single consumer; callers serialize writes and
// reads themselves if shared across goroutines.
type FramedTransport struct {
	rw io.ReadWriter
}

// NewFramedTransport wraps rw for framed command exchange.
func NewFramedTransport(rw io.ReadWriter) *FramedTransport {
	return &FramedTransport{rw: rw}
}

// WriteFrame encodes a Command and JSON payload as a single frame.
func (t *FramedTransport) WriteFrame(cmd Command, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	header := make([]byte, transportFrameHeaderSize)
	binary.LittleEndian.PutUint16(header[0:2], uint16(cmd))
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(body)))

	if _, err := t.rw.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(body) > 0 {
		if _, err := t.rw.Write(body); err != nil {
			return fmt.Errorf("write frame body: %w", err)
		}
	}
	return nil
}

// ReadFrame decodes the next frame, returning its Command and raw body.
func (t *FramedTransport) ReadFrame() (Command, []byte, error) {
	header := make([]byte, transportFrameHeaderSize)
	if _, err := io.ReadFull(t.rw, header); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}

	cmd := Command(binary.LittleEndian.Uint16(header[0:2]))
	length := binary.LittleEndian.Uint32(header[2:6])

	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(t.rw, body); err != nil {
			return 0, nil, fmt.Errorf("read frame body: %w", err)
		}
	}
	return cmd, body, nil
}
