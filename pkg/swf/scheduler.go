package swf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/filemgr/pkg/events"
	"github.com/cuemby/filemgr/pkg/log"
	"github.com/cuemby/filemgr/pkg/metrics"
)

const (
	defaultMaxWorkers        = 5
	defaultMaxWorkersPerHost = 2
	defaultReapPeriod        = 10 * time.Second
)

// hostQueue holds the workers and in-flight jobs for one remote host
// within a protocol.
type hostQueue struct {
	mu      sync.Mutex
	host    string
	workers []*Worker
	jobs    map[string]Job // jobID -> Job, while running
}

func newHostQueue(host string) *hostQueue {
	return &hostQueue{host: host, jobs: make(map[string]Job)}
}

// heldWorkerFor returns the worker reserved for url via Hold, if any.
// Caller must hold hq.mu.
func (hq *hostQueue) heldWorkerFor(url string) *Worker {
	if url == "" {
		return nil
	}
	for _, w := range hq.workers {
		if heldURL, held := w.HeldURL(); held && heldURL == url {
			return w
		}
	}
	return nil
}

// protoQueue holds all hostQueues for one protocol, bounded by
// MaxWorkers total and MaxWorkersPerHost per host.
type protoQueue struct {
	mu                sync.Mutex
	protocol          string
	hosts             map[string]*hostQueue
	maxWorkers        int
	maxWorkersPerHost int
	totalWorkers      int
}

func newProtoQueue(protocol string, maxWorkers, maxWorkersPerHost int) *protoQueue {
	if maxWorkers == 0 {
		maxWorkers = defaultMaxWorkers
	}
	if maxWorkersPerHost == 0 {
		maxWorkersPerHost = defaultMaxWorkersPerHost
	}
	return &protoQueue{
		protocol:          protocol,
		hosts:             make(map[string]*hostQueue),
		maxWorkers:        maxWorkers,
		maxWorkersPerHost: maxWorkersPerHost,
	}
}

// SchedulerConfig configures per-protocol worker limits, idle reaping and
// the event broker. The executable for each protocol is set with
// RegisterProtocol.
type SchedulerConfig struct {
	MaxWorkers        int
	MaxWorkersPerHost int
	ReapPeriod        time.Duration
	IdleTimeout       time.Duration
	Broker            *events.Broker
}

// Scheduler dispatches Jobs to per-protocol, per-host worker pools,
// launching new workers up to the configured bounds and reusing idle ones.
type Scheduler struct {
	mu       sync.Mutex
	protocol map[string]*protoQueue
	launcher map[string]WorkerConfig // protocol -> executable template

	cfg    SchedulerConfig
	reaper *idleReaper
	broker *events.Broker
}

// NewScheduler creates a Scheduler. Protocols must be registered with
// RegisterProtocol before jobs referencing them can be scheduled.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	broker := cfg.Broker
	if broker == nil {
		broker = events.NewBroker()
		broker.Start()
	}

	s := &Scheduler{
		protocol: make(map[string]*protoQueue),
		launcher: make(map[string]WorkerConfig),
		cfg:      cfg,
		reaper:   newIdleReaper(cfg.IdleTimeout),
		broker:   broker,
	}

	reapPeriod := cfg.ReapPeriod
	if reapPeriod == 0 {
		reapPeriod = defaultReapPeriod
	}
	s.reaper.start(reapPeriod)
	return s
}

// Stop halts the idle reaper.
func (s *Scheduler) Stop() {
	s.reaper.stop()
}

// RegisterProtocol declares the executable (and its launch arguments) used
// to spawn workers for a protocol.
func (s *Scheduler) RegisterProtocol(protocol, executable string, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launcher[protocol] = WorkerConfig{Protocol: protocol, Executable: executable, Args: args, Broker: s.broker}
	s.protocol[protocol] = newProtoQueue(protocol, s.cfg.MaxWorkers, s.cfg.MaxWorkersPerHost)
}

// doJob acquires (launching if necessary) a worker for job's protocol/host
// and hands the job to it. Returns errNoCapacity if the protocol or host
// is already at its worker limit and no idle worker is free.
func (s *Scheduler) doJob(ctx context.Context, job Job) error {
	s.mu.Lock()
	pq, ok := s.protocol[job.Protocol()]
	launchCfg, hasLauncher := s.launcher[job.Protocol()]
	s.mu.Unlock()
	if !ok || !hasLauncher {
		return fmt.Errorf("swf: protocol %q not registered", job.Protocol())
	}

	worker, err := s.acquireWorker(ctx, pq, launchCfg, job.Host(), job.URL())
	if err != nil {
		return err
	}

	pq.mu.Lock()
	hq := pq.hosts[job.Host()]
	hq.mu.Lock()
	hq.jobs[job.ID()] = job
	hq.mu.Unlock()
	pq.mu.Unlock()

	job.SetState(JobRunning)
	conn, acquireErr := worker.Acquire(ctx)
	if acquireErr != nil {
		job.SetState(JobFailed)
		return acquireErr
	}

	if err := conn.Send(job.Command(), job.Payload()); err != nil {
		job.SetState(JobFailed)
		worker.Release()
		return fmt.Errorf("send job %s: %w", job.ID(), err)
	}

	log.WithJobID(job.ID()).Info().Str("protocol", job.Protocol()).Str("host", job.Host()).Msg("job dispatched")
	metrics.SWFJobsRunning.WithLabelValues(job.Protocol()).Inc()
	return nil
}

// errNoCapacity is returned by acquireWorker when either the protocol-wide
// or the per-host worker limit is reached with no idle worker available.
var errNoCapacity = fmt.Errorf("swf: no worker capacity available")

// acquireWorker returns a worker for host, preferring (in order): a worker
// already held for url, an idle unheld worker, or a freshly launched one.
// A held worker is never handed to a job targeting a different url, even
// at zero refs: it stays reserved until its matching job reclaims it or
// Unhold is called directly.
func (s *Scheduler) acquireWorker(ctx context.Context, pq *protoQueue, launchCfg WorkerConfig, host, url string) (*Worker, error) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	hq, ok := pq.hosts[host]
	if !ok {
		hq = newHostQueue(host)
		pq.hosts[host] = hq
	}

	hq.mu.Lock()
	if w := hq.heldWorkerFor(url); w != nil {
		hq.mu.Unlock()
		if err := w.Unhold(); err != nil {
			return nil, fmt.Errorf("resume held worker for %s: %w", url, err)
		}
		return w, nil
	}
	for _, w := range hq.workers {
		if _, held := w.HeldURL(); held {
			continue
		}
		if w.RefCount() == 0 && w.State() != WorkerFailed {
			hq.mu.Unlock()
			return w, nil
		}
	}
	count := len(hq.workers)
	hq.mu.Unlock()

	if count >= pq.maxWorkersPerHost || pq.totalWorkers >= pq.maxWorkers {
		return nil, errNoCapacity
	}

	cfg := launchCfg
	cfg.Host = host
	worker := NewWorker(cfg)
	hq.mu.Lock()
	hq.workers = append(hq.workers, worker)
	hq.mu.Unlock()
	pq.totalWorkers++
	s.reaper.track(worker)

	metrics.SWFWorkersTotal.WithLabelValues(pq.protocol, "running").Inc()
	return worker, nil
}

// jobFinished releases the worker handling job and removes it from the
// host queue's in-flight map.
func (s *Scheduler) jobFinished(job Job, result JobResult) {
	s.mu.Lock()
	pq, ok := s.protocol[job.Protocol()]
	s.mu.Unlock()
	if !ok {
		return
	}

	pq.mu.Lock()
	hq, ok := pq.hosts[job.Host()]
	pq.mu.Unlock()
	if !ok {
		return
	}

	hq.mu.Lock()
	delete(hq.jobs, job.ID())
	var worker *Worker
	for _, w := range hq.workers {
		if w.Host() == job.Host() {
			worker = w
			break
		}
	}
	hq.mu.Unlock()

	if worker != nil {
		worker.Release()
	}

	if result.Error == ErrorKindNone {
		job.SetState(JobFinished)
	} else {
		job.SetState(JobFailed)
	}

	metrics.SWFJobsRunning.WithLabelValues(job.Protocol()).Dec()
	s.broker.Publish(&events.Event{Type: events.EventJobFinished, Message: result.String()})
	log.WithJobID(job.ID()).Info().Str("result", result.String()).Msg("job finished")
}

// cancelJob marks job canceled. The worker handling it is left running;
// callers that need the in-flight operation aborted must also message the
// worker through its Connection (protocol-specific, not handled here).
func (s *Scheduler) cancelJob(job Job) {
	s.jobFinished(job, JobResult{JobID: job.ID(), Error: ErrorKindCanceled})
	job.SetState(JobCanceled)
}

// putWorkerOnHold suspends the worker currently running job and reserves
// it for url instead of returning it to the idle pool, e.g. when a
// redirect points the next job at the same resource. doJob reclaims this
// exact worker (via acquireWorker) for a later job whose URL matches,
// instead of launching or reusing a different one.
func (s *Scheduler) putWorkerOnHold(job Job, url string) error {
	s.mu.Lock()
	pq, ok := s.protocol[job.Protocol()]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("swf: protocol %q not registered", job.Protocol())
	}

	pq.mu.Lock()
	hq, ok := pq.hosts[job.Host()]
	pq.mu.Unlock()
	if !ok {
		return fmt.Errorf("swf: no host queue for %s", job.Host())
	}

	hq.mu.Lock()
	delete(hq.jobs, job.ID())
	var worker *Worker
	for _, w := range hq.workers {
		if w.Host() == job.Host() {
			worker = w
			break
		}
	}
	hq.mu.Unlock()
	if worker == nil {
		return fmt.Errorf("swf: no worker found for job %s", job.ID())
	}

	worker.Release()
	worker.Hold(url)
	log.WithJobID(job.ID()).Info().Str("url", url).Msg("worker put on hold")
	return nil
}
