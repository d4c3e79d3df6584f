package copypipeline

import (
	"errors"
	"os"
	"sync"
)

// workerEvent is what CopyWorker's copy goroutine sends to its event pump;
// the pump goroutine is the only place progress and the terminal state are
// written into CopyTask (Start, Pause and Resume set the state from the
// caller's goroutine).
type workerEvent struct {
	progress *progressEvent
	done     *doneEvent
}

type progressEvent struct {
	copied, total int64
}

type doneEvent struct {
	state  TaskState
	errMsg string
}

// CopyWorker runs a CopyTask's CopyAlgorithm on its own goroutine and
// implements ProgressObserver so the algorithm can report progress and
// check pause/stop without ever touching CopyTask directly.
type CopyWorker struct {
	task *CopyTask

	mu      sync.Mutex
	paused  bool
	stopped bool
	resumeCh chan struct{}

	events chan workerEvent
	done   chan struct{}
}

func newCopyWorker(task *CopyTask) *CopyWorker {
	return &CopyWorker{
		task:     task,
		resumeCh: make(chan struct{}),
		events:   make(chan workerEvent, 64),
		done:     make(chan struct{}),
	}
}

// start launches the copy goroutine and the event-pump goroutine.
func (w *CopyWorker) start() {
	go w.pump()
	go w.run()
}

func (w *CopyWorker) run() {
	defer close(w.events)

	info, err := os.Stat(w.task.src)
	if err != nil {
		w.events <- workerEvent{done: &doneEvent{state: TaskError, errMsg: err.Error()}}
		return
	}

	var copyErr error
	if info.IsDir() {
		copyErr = w.task.algorithm.CopyDirectory(w.task.src, w.task.dst, w)
	} else {
		copyErr = w.task.algorithm.CopyFile(w.task.src, w.task.dst, w)
	}

	switch {
	case copyErr == nil:
		w.events <- workerEvent{done: &doneEvent{state: TaskCompleted}}
	case errors.Is(copyErr, ErrCancelled):
		w.events <- workerEvent{done: &doneEvent{state: TaskStopped}}
	default:
		w.events <- workerEvent{done: &doneEvent{state: TaskError, errMsg: copyErr.Error()}}
	}
}

// pump drains w.events on the worker's own dedicated goroutine and
// forwards them into CopyTask's state, decoupling the copy goroutine from
// direct CopyTask mutation.
func (w *CopyWorker) pump() {
	for evt := range w.events {
		if evt.progress != nil {
			w.task.onProgress(evt.progress.copied, evt.progress.total)
		}
		if evt.done != nil {
			w.task.onFinished(evt.done.state, evt.done.errMsg)
			close(w.done)
			return
		}
	}
}

func (w *CopyWorker) pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
	w.resumeCh = make(chan struct{})
}

func (w *CopyWorker) resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paused {
		w.paused = false
		close(w.resumeCh)
	}
}

func (w *CopyWorker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.paused {
		w.paused = false
		close(w.resumeCh)
	}
}

// --- ProgressObserver ---

func (w *CopyWorker) OnProgress(copied, total int64) {
	select {
	case w.events <- workerEvent{progress: &progressEvent{copied: copied, total: total}}:
	default:
		// Event buffer full; drop this sample. A later sample carries a
		// newer count; the completion event carries no byte counts.
	}
}

func (w *CopyWorker) OnFileStart(path string) {}

func (w *CopyWorker) OnFileComplete(path string) {}

func (w *CopyWorker) OnError(message string) {}

func (w *CopyWorker) ShouldStop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

func (w *CopyWorker) ShouldPause() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

func (w *CopyWorker) WaitWhilePaused() {
	w.mu.Lock()
	resumeCh := w.resumeCh
	paused := w.paused
	w.mu.Unlock()
	if !paused {
		return
	}
	<-resumeCh
}
