package copypipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/filemgr/pkg/events"
	"github.com/cuemby/filemgr/pkg/log"
	"github.com/cuemby/filemgr/pkg/metrics"
)

// TaskState is CopyTask's position in its lifecycle.
type TaskState int

const (
	TaskCreated TaskState = iota
	TaskRunning
	TaskPaused
	TaskCompleted
	TaskStopped
	TaskError
)

func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskRunning:
		return "running"
	case TaskPaused:
		return "paused"
	case TaskCompleted:
		return "completed"
	case TaskStopped:
		return "stopped"
	case TaskError:
		return "error"
	default:
		return "unknown"
	}
}

// CopyTask is the state machine driving a single copy operation: it owns a
// CopyWorker goroutine, tracks progress, and publishes lifecycle events.
type CopyTask struct {
	id        string
	src       string
	dst       string
	algorithm CopyAlgorithm

	mu       sync.RWMutex
	state    TaskState
	copied   int64
	total    int64
	errMsg   string
	startedAt time.Time
	endedAt   time.Time

	worker *CopyWorker
	broker *events.Broker

	// OnStart, OnComplete, and OnError are optional callbacks a caller may
	// set before calling Start. OnStart runs synchronously from Start's own
	// goroutine; OnComplete and OnError run from the task's event-pump
	// goroutine (the same goroutine that calls onFinished), never from the
	// copy goroutine itself. Nil fields are simply not invoked.
	OnStart    func(t *CopyTask)
	OnComplete func(t *CopyTask)
	OnError    func(t *CopyTask, errMsg string)
}

// NewCopyTask creates a task in the Created state. It does not start
// copying until Start is called.
func NewCopyTask(src, dst string, algorithm CopyAlgorithm, broker *events.Broker) *CopyTask {
	return &CopyTask{
		id:        uuid.NewString(),
		src:       src,
		dst:       dst,
		algorithm: algorithm,
		state:     TaskCreated,
		broker:    broker,
	}
}

// ID returns the task's unique identifier.
func (t *CopyTask) ID() string { return t.id }

// State returns the task's current state.
func (t *CopyTask) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Progress returns bytes copied so far and the total to copy.
func (t *CopyTask) Progress() (copied, total int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.copied, t.total
}

// Start computes the total size, launches the CopyWorker goroutine, and
// transitions to Running. Start returns an error if the task is not in
// Created state.
func (t *CopyTask) Start() error {
	t.mu.Lock()
	if t.state != TaskCreated {
		t.mu.Unlock()
		return fmt.Errorf("copypipeline: cannot start task in state %s", t.state)
	}

	total, err := t.algorithm.CalculateTotalSize(t.src)
	if err != nil {
		t.state = TaskError
		t.errMsg = err.Error()
		t.mu.Unlock()
		return fmt.Errorf("calculate total size: %w", err)
	}
	t.total = total
	t.state = TaskRunning
	t.startedAt = time.Now()
	t.mu.Unlock()

	t.worker = newCopyWorker(t)
	t.worker.start()

	t.publish(events.EventTaskStateChanged)
	log.WithTaskID(t.id).Info().Str("src", t.src).Str("dst", t.dst).Int64("total_bytes", total).Msg("copy task started")
	metrics.CopyTasksTotal.WithLabelValues(TaskRunning.String()).Inc()
	if t.OnStart != nil {
		t.OnStart(t)
	}
	return nil
}

// Pause asks the worker to pause at its next check point. Returns an error
// unless the task is Running and its algorithm supports pause.
func (t *CopyTask) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskRunning {
		return fmt.Errorf("copypipeline: cannot pause task in state %s", t.state)
	}
	if !t.algorithm.SupportsPause() {
		return fmt.Errorf("copypipeline: algorithm %s does not support pause", t.algorithm.Name())
	}
	t.state = TaskPaused
	t.worker.pause()
	return nil
}

// Resume resumes a paused task.
func (t *CopyTask) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskPaused {
		return fmt.Errorf("copypipeline: cannot resume task in state %s", t.state)
	}
	t.state = TaskRunning
	t.worker.resume()
	return nil
}

// Stop asks the worker to abort as soon as possible.
func (t *CopyTask) Stop() error {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state != TaskRunning && state != TaskPaused {
		return fmt.Errorf("copypipeline: cannot stop task in state %s", state)
	}
	t.worker.stop()
	return nil
}

// onProgress is called by the worker's event pump (the task's own
// goroutine, never the copy goroutine directly) to update progress.
func (t *CopyTask) onProgress(copied, total int64) {
	t.mu.Lock()
	t.copied = copied
	t.total = total
	t.mu.Unlock()
	t.publish(events.EventTaskProgress)
}

// onFinished transitions the task to a terminal state.
func (t *CopyTask) onFinished(state TaskState, errMsg string) {
	t.mu.Lock()
	t.state = state
	t.errMsg = errMsg
	t.endedAt = time.Now()
	duration := t.endedAt.Sub(t.startedAt)
	t.mu.Unlock()

	metrics.CopyTasksTotal.WithLabelValues(state.String()).Inc()
	metrics.CopyTaskDuration.WithLabelValues(t.algorithm.Name()).Observe(duration.Seconds())

	if errMsg != "" {
		t.publish(events.EventTaskError)
		log.WithTaskID(t.id).Error().Str("error", errMsg).Msg("copy task ended with error")
		if t.OnError != nil {
			t.OnError(t, errMsg)
		}
	} else if state == TaskCompleted && t.OnComplete != nil {
		t.OnComplete(t)
	}
	t.publish(events.EventTaskFinished)
	log.WithTaskID(t.id).Info().Str("state", state.String()).Dur("duration", duration).Msg("copy task finished")
}

func (t *CopyTask) publish(evtType events.EventType) {
	if t.broker == nil {
		return
	}
	t.broker.Publish(&events.Event{Type: evtType, Message: t.id})
}
