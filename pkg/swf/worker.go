package swf

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/cuemby/filemgr/pkg/events"
	"github.com/cuemby/filemgr/pkg/health"
	"github.com/cuemby/filemgr/pkg/log"
	"github.com/cuemby/filemgr/pkg/metrics"
)

// launchReadinessTimeout bounds how long launchLocked waits for a freshly
// started worker process to accept TCP connections before giving up.
const launchReadinessTimeout = 5 * time.Second

// WorkerState is a Worker's position in its launch/run/idle lifecycle.
type WorkerState int

const (
	WorkerIdle WorkerState = iota
	WorkerLaunching
	WorkerRunning
	WorkerFailed
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerLaunching:
		return "launching"
	case WorkerRunning:
		return "running"
	case WorkerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkerConfig configures the child process a Worker launches for a
// protocol.
type WorkerConfig struct {
	Protocol   string
	Host       string
	Executable string
	Args       []string
	Broker     *events.Broker
}

// Worker owns one child process handling a single protocol/host pair. It
// is ref-counted: the Scheduler increments the count for every Job handed
// to it and decrements on completion; a Worker reaches zero refs and sits
// idle until the idle reaper evicts it.
type Worker struct {
	protocol string
	host     string
	cfg      WorkerConfig

	mu           sync.Mutex
	state        WorkerState
	refs         int
	idleSince    time.Time
	held         bool
	heldURL      string
	cmd          *exec.Cmd
	conn         *Connection
}

// NewWorker creates a Worker in the Idle state; it has not launched a
// process yet.
func NewWorker(cfg WorkerConfig) *Worker {
	return &Worker{
		protocol:  cfg.Protocol,
		host:      cfg.Host,
		cfg:       cfg,
		state:     WorkerIdle,
		idleSince: time.Now(),
	}
}

// Protocol returns the protocol this worker handles.
func (w *Worker) Protocol() string { return w.protocol }

// Host returns the remote host this worker talks to.
func (w *Worker) Host() string { return w.host }

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Acquire increments the ref count, marking the worker in use. Launches
// the child process on first use.
func (w *Worker) Acquire(ctx context.Context) (*Connection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.refs++
	if w.state == WorkerRunning {
		return w.conn, nil
	}

	w.state = WorkerLaunching
	if err := w.launchLocked(ctx); err != nil {
		w.state = WorkerFailed
		w.refs--
		metrics.SWFWorkersTotal.WithLabelValues(w.protocol, "failed").Inc()
		return nil, fmt.Errorf("launch worker for %s/%s: %w", w.protocol, w.host, err)
	}

	w.state = WorkerRunning
	metrics.SWFWorkersLaunched.WithLabelValues(w.protocol).Inc()
	if w.cfg.Broker != nil {
		w.cfg.Broker.Publish(&events.Event{Type: events.EventWorkerLaunched, Message: fmt.Sprintf("%s/%s", w.protocol, w.host)})
	}
	log.WithWorkerID(fmt.Sprintf("%s/%s", w.protocol, w.host)).Info().Msg("worker launched")
	return w.conn, nil
}

// Release decrements the ref count. When it reaches zero the worker
// becomes idle and eligible for reaping.
func (w *Worker) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.refs > 0 {
		w.refs--
	}
	if w.refs == 0 {
		w.idleSince = time.Now()
	}
}

// RefCount returns the current ref count.
func (w *Worker) RefCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refs
}

// Hold reserves this worker for url: its Connection is suspended and it is
// excluded from both the idle pool and the reaper's eviction sweep, even
// at zero refs, until a job targeting the same url reclaims it via Unhold.
func (w *Worker) Hold(url string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held = true
	w.heldURL = url
	if w.conn != nil {
		w.conn.Suspend()
	}
}

// Unhold clears a prior Hold, flushes any Sends queued while suspended,
// and resets idleSince so the reaper's grace period restarts from now.
func (w *Worker) Unhold() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held = false
	w.heldURL = ""
	w.idleSince = time.Now()
	if w.conn != nil {
		return w.conn.Resume()
	}
	return nil
}

// HeldURL returns the url this worker is reserved for and whether it is
// currently held at all.
func (w *Worker) HeldURL() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heldURL, w.held
}

// IdleFor reports how long this worker has sat at zero refs. Returns
// false if the worker is in use or held.
func (w *Worker) IdleFor() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.refs > 0 || w.held {
		return 0, false
	}
	return time.Since(w.idleSince), true
}

// Kill terminates the child process and marks the worker failed.
func (w *Worker) Kill() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		_ = w.conn.Close()
	}
	if w.cmd != nil && w.cmd.Process != nil {
		if err := w.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill worker process: %w", err)
		}
	}
	w.state = WorkerFailed
	if w.cfg.Broker != nil {
		w.cfg.Broker.Publish(&events.Event{Type: events.EventWorkerDied, Message: fmt.Sprintf("%s/%s", w.protocol, w.host)})
	}
	metrics.SWFWorkerDeaths.WithLabelValues(w.protocol).Inc()
	return nil
}

// launchLocked starts the child process and dials its advertised
// endpoint. Caller must hold w.mu.
func (w *Worker) launchLocked(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.cfg.Executable, w.cfg.Args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}
	w.cmd = cmd

	// The launched process needs a moment to bind its listening endpoint.
	// Poll with a TCPChecker rather than dialing immediately, since the
	// first ConnectTo attempt right after cmd.Start() almost always loses
	// the race against the child process's own startup.
	if err := w.waitForReadyLocked(ctx); err != nil {
		return err
	}

	conn, err := ConnectTo(w.host)
	if err != nil {
		return err
	}
	w.conn = conn
	return nil
}

// waitForReadyLocked polls the worker's advertised endpoint with a
// TCPChecker until it accepts connections or launchReadinessTimeout
// elapses. Caller must hold w.mu.
func (w *Worker) waitForReadyLocked(ctx context.Context) error {
	checker := health.NewTCPChecker(w.host).WithTimeout(500 * time.Millisecond)
	deadline := time.Now().Add(launchReadinessTimeout)
	for {
		result := checker.Check(ctx)
		if result.Healthy {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("worker endpoint %s not ready after %s: %s", w.host, launchReadinessTimeout, result.Message)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
