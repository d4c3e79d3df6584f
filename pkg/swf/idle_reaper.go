package swf

import (
	"sync"
	"time"

	"github.com/cuemby/filemgr/pkg/log"
)

// defaultIdleTimeout is how long a worker sits at zero refs before the
// reaper kills it.
const defaultIdleTimeout = 60 * time.Second

// idleReaper periodically scans a Scheduler's workers and kills the ones
// that have been idle past the configured timeout.
type idleReaper struct {
	mu      sync.Mutex
	workers map[*Worker]struct{}
	timeout time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newIdleReaper(timeout time.Duration) *idleReaper {
	if timeout == 0 {
		timeout = defaultIdleTimeout
	}
	return &idleReaper{
		workers: make(map[*Worker]struct{}),
		timeout: timeout,
		stopCh:  make(chan struct{}),
	}
}

func (r *idleReaper) track(w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w] = struct{}{}
}

func (r *idleReaper) untrack(w *Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, w)
}

func (r *idleReaper) start(period time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *idleReaper) stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *idleReaper) sweep() {
	r.mu.Lock()
	workers := make([]*Worker, 0, len(r.workers))
	for w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	for _, w := range workers {
		idle, eligible := w.IdleFor()
		if !eligible || idle < r.timeout {
			continue
		}
		if err := w.Kill(); err != nil {
			log.WithWorkerID(w.Protocol() + "/" + w.Host()).Warn().Err(err).Msg("idle reaper failed to kill worker")
			continue
		}
		r.untrack(w)
		log.WithWorkerID(w.Protocol() + "/" + w.Host()).Info().Dur("idle_for", idle).Msg("idle worker reaped")
	}
}
