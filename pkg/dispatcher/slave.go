package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/cuemby/filemgr/pkg/log"
)

const (
	slaveHeartbeatInterval = 3 * time.Second
	slaveReconnectBackoff  = 5 * time.Second
)

// Slave connects to a Master, registers its declared capabilities, and
// executes tasks the Master assigns to it via registered Executors.
type Slave struct {
	id           string
	masterAddr   string
	capabilities []string

	mu           sync.RWMutex
	executors    map[string]Executor
	runningTasks map[string]struct{}

	conn   net.Conn
	stopCh chan struct{}
}

// NewSlave creates a Slave that will connect to masterAddr once Run is
// called.
func NewSlave(id, masterAddr string, capabilities []string) *Slave {
	return &Slave{
		id:           id,
		masterAddr:   masterAddr,
		capabilities: capabilities,
		executors:    make(map[string]Executor),
		runningTasks: make(map[string]struct{}),
		stopCh:       make(chan struct{}),
	}
}

// RegisterExecutor binds an Executor to a task type. Incoming TaskMessages
// of that type are routed to it.
func (s *Slave) RegisterExecutor(taskType string, executor Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[taskType] = executor
}

// Run connects to the master, registers, and serves the connection until
// ctx is canceled or Stop is called, reconnecting with a fixed backoff on
// disconnect.
func (s *Slave) Run(ctx context.Context) error {
	logger := log.WithSlaveID(s.id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		default:
		}

		if err := s.connectAndServe(ctx); err != nil {
			logger.Warn().Err(err).Msg("disconnected from master, backing off")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-time.After(slaveReconnectBackoff):
		}
	}
}

// Stop halts Run's reconnect loop.
func (s *Slave) Stop() {
	close(s.stopCh)
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

func (s *Slave) connectAndServe(ctx context.Context) error {
	conn, err := net.Dial("tcp", s.masterAddr)
	if err != nil {
		return fmt.Errorf("dial master: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	if err := WriteFrame(conn, MsgRegister, RegisterMessage{SlaveID: s.id, Capabilities: s.capabilities}); err != nil {
		return fmt.Errorf("send register: %w", err)
	}

	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeatLoop(heartbeatCtx, conn)

	for {
		msgType, body, err := ReadFrame(conn)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		switch msgType {
		case MsgTaskAssign:
			var task TaskMessage
			if err := json.Unmarshal(body, &task); err != nil {
				log.WithSlaveID(s.id).Error().Err(err).Msg("malformed task assignment")
				continue
			}
			go s.executeTask(ctx, conn, task)
		case MsgRegisterAck, MsgHeartbeatAck:
			// no-op acknowledgements
		default:
			log.WithSlaveID(s.id).Warn().Uint16("type", uint16(msgType)).Msg("unexpected message type")
		}
	}
}

func (s *Slave) heartbeatLoop(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(slaveHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := WriteFrame(conn, MsgHeartbeat, s.sampleHeartbeat()); err != nil {
				return
			}
		}
	}
}

// sampleHeartbeat builds the outgoing HeartbeatMessage. CPUUsage and
// MemoryUsageBytes are a process-local proxy for true host resource
// sampling (goroutine count and heap allocation), not a /proc-level
// reading.
func (s *Slave) sampleHeartbeat() HeartbeatMessage {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return HeartbeatMessage{
		SlaveID:          s.id,
		CPUUsage:         runtime.NumGoroutine(),
		MemoryUsageBytes: mem.Alloc,
		RunningTasks:     s.runningTaskIDs(),
	}
}

func (s *Slave) runningTaskIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.runningTasks))
	for id := range s.runningTasks {
		ids = append(ids, id)
	}
	return ids
}

func (s *Slave) executeTask(ctx context.Context, conn net.Conn, task TaskMessage) {
	s.mu.RLock()
	executor, ok := s.executors[task.TaskType]
	s.mu.RUnlock()

	logger := log.WithTaskID(task.TaskID)
	if !ok {
		s.reportResult(conn, TaskResult{TaskID: task.TaskID, Success: false, Error: fmt.Sprintf("no executor registered for task type %q", task.TaskType)})
		return
	}

	s.mu.Lock()
	s.runningTasks[task.TaskID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.runningTasks, task.TaskID)
		s.mu.Unlock()
	}()

	progress := make(chan TaskProgress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			_ = WriteFrame(conn, MsgTaskProgress, p)
		}
	}()

	result, err := executor.Execute(ctx, task, progress)
	close(progress)
	<-done

	if err != nil {
		logger.Error().Err(err).Msg("task execution failed")
		s.reportResult(conn, TaskResult{TaskID: task.TaskID, Success: false, Error: err.Error()})
		return
	}
	s.reportResult(conn, TaskResult{TaskID: task.TaskID, Success: true, Result: result})
}

func (s *Slave) reportResult(conn net.Conn, result TaskResult) {
	if err := WriteFrame(conn, MsgTaskResult, result); err != nil {
		log.WithTaskID(result.TaskID).Error().Err(err).Msg("failed to report task result")
	}
}
