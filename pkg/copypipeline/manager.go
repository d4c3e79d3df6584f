package copypipeline

import (
	"fmt"
	"sync"

	"github.com/cuemby/filemgr/pkg/events"
)

// ErrTaskAlreadyActive is returned by TaskManager.StartCopy when another
// task is already running or paused.
var ErrTaskAlreadyActive = fmt.Errorf("copypipeline: a task is already active")

// TaskManager is the algorithm registry and enforces that at most one
// CopyTask is active (Running or Paused) at a time.
type TaskManager struct {
	mu         sync.Mutex
	algorithms map[string]CopyAlgorithm
	active     *CopyTask
	history    []*CopyTask

	broker *events.Broker
}

// NewTaskManager creates a TaskManager with DefaultAlgorithm and
// SyncAlgorithm pre-registered under names "default" and "sync".
func NewTaskManager(broker *events.Broker) *TaskManager {
	tm := &TaskManager{
		algorithms: make(map[string]CopyAlgorithm),
		broker:     broker,
	}
	tm.RegisterAlgorithm(NewDefaultAlgorithm())
	tm.RegisterAlgorithm(NewSyncAlgorithm())
	return tm
}

// RegisterAlgorithm adds or replaces the algorithm registered under its
// own Name().
func (tm *TaskManager) RegisterAlgorithm(algorithm CopyAlgorithm) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.algorithms[algorithm.Name()] = algorithm
}

// StartCopy creates and starts a CopyTask using the named algorithm.
// Returns ErrTaskAlreadyActive if a task is already Running or Paused.
func (tm *TaskManager) StartCopy(src, dst, algorithmName string) (*CopyTask, error) {
	tm.mu.Lock()
	algorithm, ok := tm.algorithms[algorithmName]
	if !ok {
		tm.mu.Unlock()
		return nil, fmt.Errorf("copypipeline: unknown algorithm %q", algorithmName)
	}

	if tm.active != nil {
		state := tm.active.State()
		if state == TaskRunning || state == TaskPaused {
			tm.mu.Unlock()
			return nil, ErrTaskAlreadyActive
		}
		tm.history = append(tm.history, tm.active)
	}

	task := NewCopyTask(src, dst, algorithm, tm.broker)
	tm.active = task
	tm.mu.Unlock()

	if err := task.Start(); err != nil {
		return nil, err
	}
	return task, nil
}

// Active returns the currently active task, if any.
func (tm *TaskManager) Active() (*CopyTask, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.active == nil {
		return nil, false
	}
	return tm.active, true
}

// History returns completed/stopped/errored tasks evicted from the active
// slot by a later StartCopy call.
func (tm *TaskManager) History() []*CopyTask {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	out := make([]*CopyTask, len(tm.history))
	copy(out, tm.history)
	return out
}
