package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/filemgr/pkg/events"
	"github.com/cuemby/filemgr/pkg/health"
	"github.com/cuemby/filemgr/pkg/log"
	"github.com/cuemby/filemgr/pkg/metrics"
)

// SlaveInfo tracks everything the Master knows about a registered Slave.
type SlaveInfo struct {
	ID           string
	Capabilities []string
	RegisteredAt time.Time

	checker *health.HeartbeatChecker
	status  *health.Status
}

// TaskInfo is the Master-side bookkeeping for a task: its message plus
// assignment and retry state.
type TaskInfo struct {
	Message    TaskMessage
	AssignedTo string
	Attempts   int
	State      string // "pending", "assigned", "done", "failed"
}

const (
	heartbeatTimeout  = 10 * time.Second
	healthLoopPeriod  = 5 * time.Second
	defaultMaxRetries = 3
)

// MasterConfig holds Master construction parameters.
type MasterConfig struct {
	MaxRetries  int
	EventBroker *events.Broker
}

// Master tracks registered Slaves, queues incoming tasks, and assigns them
// to a healthy Slave whose declared capabilities match the task type.
type Master struct {
	mu     sync.RWMutex
	slaves map[string]*SlaveInfo
	tasks  map[string]*TaskInfo
	queue  []string // pending TaskInfo IDs, FIFO

	maxRetries int
	broker     *events.Broker

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// publish is a small convenience wrapper around the broker's Event shape.
func (m *Master) publish(evtType events.EventType, message string, meta map[string]string) {
	m.broker.Publish(&events.Event{Type: evtType, Message: message, Metadata: meta})
}

// NewMaster creates a Master. If cfg.MaxRetries is zero, defaultMaxRetries
// is used. If cfg.EventBroker is nil, a private broker is created and
// started.
func NewMaster(cfg MasterConfig) *Master {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	broker := cfg.EventBroker
	if broker == nil {
		broker = events.NewBroker()
		broker.Start()
	}

	return &Master{
		slaves:     make(map[string]*SlaveInfo),
		tasks:      make(map[string]*TaskInfo),
		maxRetries: maxRetries,
		broker:     broker,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the periodic health-check loop.
func (m *Master) Start() {
	m.wg.Add(1)
	go m.healthLoop()
}

// Stop halts the health loop and waits for it to exit.
func (m *Master) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// RegisterSlave adds or refreshes a Slave's registration.
func (m *Master) RegisterSlave(slaveID string, capabilities []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, exists := m.slaves[slaveID]
	if !exists {
		info = &SlaveInfo{
			ID:           slaveID,
			RegisteredAt: time.Now(),
			checker:      health.NewHeartbeatChecker(heartbeatTimeout),
			status:       health.NewStatus(),
		}
		m.slaves[slaveID] = info
	}
	info.Capabilities = capabilities
	info.checker.Touch()

	metrics.DispatcherSlavesTotal.WithLabelValues("true").Set(float64(m.healthySlaveCountLocked()))

	log.WithSlaveID(slaveID).Info().Strs("capabilities", capabilities).Msg("slave registered")
	m.publish(events.EventSlaveRegistered, slaveID, nil)
}

// Heartbeat records liveness for a registered slave. A heartbeat from a
// slave the health loop had previously flagged unhealthy immediately flips
// it back to healthy and drains the pending queue against it, rather than
// waiting for the next health-loop tick to notice.
func (m *Master) Heartbeat(slaveID string) error {
	m.mu.Lock()
	info, ok := m.slaves[slaveID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("heartbeat from unknown slave %q", slaveID)
	}
	info.checker.Touch()

	recovered := !info.status.Healthy
	if recovered {
		info.status.Healthy = true
		info.status.ConsecutiveFailures = 0
		info.status.ConsecutiveSuccesses = 1
	}
	healthyCount := m.healthySlaveCountLocked()
	m.mu.Unlock()

	if recovered {
		metrics.DispatcherSlavesTotal.WithLabelValues("true").Set(float64(healthyCount))
		log.WithSlaveID(slaveID).Info().Msg("slave recovered, marked healthy")
		m.publish(events.EventSlaveRegistered, slaveID, map[string]string{"recovered": "true"})
		m.assign()
	}
	return nil
}

// Submit enqueues a new task for assignment and attempts an immediate
// assignment pass.
func (m *Master) Submit(task TaskMessage) {
	m.mu.Lock()
	m.tasks[task.TaskID] = &TaskInfo{Message: task, State: "pending"}
	m.queue = append(m.queue, task.TaskID)
	metrics.DispatcherTasksPending.Set(float64(len(m.queue)))
	m.mu.Unlock()

	m.assign()
}

// ReportResult records a Slave's terminal report for a task. A failure
// within maxRetries re-enqueues the task for redistribution; exceeding it
// abandons the task.
func (m *Master) ReportResult(slaveID string, result TaskResult) {
	m.mu.Lock()
	info, ok := m.tasks[result.TaskID]
	if !ok {
		m.mu.Unlock()
		return
	}

	if result.Success {
		info.State = "done"
		m.mu.Unlock()
		m.publish(events.EventTaskFinished, result.TaskID, nil)
		return
	}

	info.Attempts++
	if info.Attempts > m.maxRetries {
		info.State = "failed"
		m.mu.Unlock()
		metrics.DispatcherTasksAbandoned.Inc()
		m.publish(events.EventTaskAbandoned, result.TaskID, map[string]string{"error": result.Error})
		log.WithTaskID(result.TaskID).Error().Str("error", result.Error).Msg("task abandoned after max retries")
		return
	}

	info.State = "pending"
	info.AssignedTo = ""
	m.queue = append(m.queue, result.TaskID)
	m.mu.Unlock()

	metrics.DispatcherTasksRetried.Inc()
	m.publish(events.EventTaskRedistributed, result.TaskID, nil)
	m.assign()
}

// SlaveLost marks a slave unhealthy and redistributes any tasks currently
// assigned to it. The slave's registry entry is kept, not deleted: a
// subsequent Heartbeat from the same slave ID must be able to flip it back
// to healthy without a fresh RegisterSlave call.
func (m *Master) SlaveLost(slaveID string) {
	m.mu.Lock()
	if info, ok := m.slaves[slaveID]; ok {
		info.status.Healthy = false
	}

	var requeued []string
	for id, task := range m.tasks {
		if task.AssignedTo == slaveID && task.State == "assigned" {
			task.State = "pending"
			task.AssignedTo = ""
			requeued = append(requeued, id)
		}
	}
	m.queue = append(m.queue, requeued...)
	metrics.DispatcherSlavesTotal.WithLabelValues("true").Set(float64(m.healthySlaveCountLocked()))
	m.mu.Unlock()

	log.WithSlaveID(slaveID).Warn().Int("requeued_tasks", len(requeued)).Msg("slave lost, tasks redistributed")
	m.publish(events.EventSlaveUnhealthy, slaveID, nil)
	for _, id := range requeued {
		m.publish(events.EventTaskRedistributed, id, nil)
	}
	if len(requeued) > 0 {
		m.assign()
	}
}

// assign performs a first-fit assignment pass: for each pending task, pick
// a healthy slave declaring a matching capability. Slaves are scanned in Go
// map order, so which of several matching slaves is picked is not defined.
func (m *Master) assign() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DispatcherAssignmentDuration)

	m.mu.Lock()
	defer m.mu.Unlock()

	var remaining []string
	for _, taskID := range m.queue {
		task, ok := m.tasks[taskID]
		if !ok || task.State != "pending" {
			continue
		}

		slaveID, found := m.pickSlaveLocked(task.Message.TaskType)
		if !found {
			remaining = append(remaining, taskID)
			continue
		}

		task.State = "assigned"
		task.AssignedTo = slaveID
		m.publish(events.EventTaskAssigned, taskID, map[string]string{"slave_id": slaveID})
	}
	m.queue = remaining
	metrics.DispatcherTasksPending.Set(float64(len(m.queue)))
}

func (m *Master) pickSlaveLocked(taskType string) (string, bool) {
	for id, info := range m.slaves {
		if !info.status.Healthy {
			continue
		}
		for _, cap := range info.Capabilities {
			if cap == taskType {
				return id, true
			}
		}
	}
	return "", false
}

func (m *Master) healthySlaveCountLocked() int {
	n := 0
	for _, info := range m.slaves {
		if info.status.Healthy {
			n++
		}
	}
	return n
}

func (m *Master) healthLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(healthLoopPeriod)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkSlaveHealth(ctx)
		}
	}
}

// checkSlaveHealth polls every slave's checker and calls SlaveLost only on
// the healthy-to-unhealthy transition, so an already-unhealthy slave isn't
// re-redistributed (and re-published) on every tick while it stays down.
func (m *Master) checkSlaveHealth(ctx context.Context) {
	cfg := health.DefaultConfig()
	cfg.Retries = 1

	m.mu.Lock()
	var newlyUnhealthy []string
	for id, info := range m.slaves {
		wasHealthy := info.status.Healthy
		result := info.checker.Check(ctx)
		info.status.Update(result, cfg)
		if wasHealthy && !info.status.Healthy {
			newlyUnhealthy = append(newlyUnhealthy, id)
		}
	}
	m.mu.Unlock()

	for _, id := range newlyUnhealthy {
		m.SlaveLost(id)
	}
}

// PendingCount returns the number of tasks still waiting for assignment.
func (m *Master) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue)
}

// TaskState returns the current state of a task, or false if unknown.
func (m *Master) TaskState(taskID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.tasks[taskID]
	if !ok {
		return "", false
	}
	return info.State, true
}
