package dispatcher

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MessageType identifies the kind of payload carried by a Frame.
type MessageType uint16

const (
	MsgRegister       MessageType = 1
	MsgRegisterAck    MessageType = 2
	MsgHeartbeat      MessageType = 3
	MsgHeartbeatAck   MessageType = 4
	MsgTaskAssign     MessageType = 5
	MsgTaskProgress   MessageType = 6
	MsgTaskResult     MessageType = 7
	MsgTaskCancel     MessageType = 8
)

// frameHeaderSize is the fixed 10-byte header every frame carries:
// {Type uint16, Length uint32, reserved uint32}, little-endian.
const frameHeaderSize = 10

// Header holds the common message fields (type, message ID, timestamp).
// WriteFrame and ReadFrame do not send or read it: a frame's 10-byte header
// carries only the message type and the body length, and no message type
// embeds Header.
type Header struct {
	Type     MessageType
	MessageID string
	Timestamp int64
}

// WriteFrame encodes a Type and a JSON-marshalable payload as a single
// length-prefixed frame and writes it to w.
func WriteFrame(w io.Writer, msgType MessageType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint16(header[0:2], uint16(msgType))
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(body)))
	// bytes 6:10 reserved, left zero

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame decodes one length-prefixed frame from r and returns its type
// and raw JSON body. Callers unmarshal the body according to msgType.
func ReadFrame(r io.Reader) (MessageType, []byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}

	msgType := MessageType(binary.LittleEndian.Uint16(header[0:2]))
	length := binary.LittleEndian.Uint32(header[2:6])

	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read frame body: %w", err)
		}
	}

	return msgType, body, nil
}

// TaskMessage is the payload a Master sends to assign a task to a Slave.
// Payload is opaque to both sides of the dispatcher: only the Executor
// registered for TaskType interprets it.
type TaskMessage struct {
	TaskID   string          `json:"task_id"`
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

// TaskResult is what a Slave reports back once a task reaches a terminal
// state, successful or not.
type TaskResult struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// TaskProgress is an in-flight progress report a Slave may send while
// executing a long-running task.
type TaskProgress struct {
	TaskID  string  `json:"task_id"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// RegisterMessage announces a Slave's identity and declared capabilities
// to the Master.
type RegisterMessage struct {
	SlaveID      string   `json:"slave_id"`
	Capabilities []string `json:"capabilities"`
}

// HeartbeatMessage is sent periodically by a registered Slave to prove
// liveness to the Master, along with its current resource usage and the
// tasks it is presently executing. CPUUsage and MemoryUsageBytes are a
// process-local proxy for true host resource sampling (runtime.NumGoroutine
// and runtime.MemStats.Alloc respectively), not a /proc-level reading.
type HeartbeatMessage struct {
	SlaveID          string   `json:"slave_id"`
	CPUUsage         int      `json:"cpu_usage"`
	MemoryUsageBytes uint64   `json:"memory_usage_bytes"`
	RunningTasks     []string `json:"running_tasks"`
}
