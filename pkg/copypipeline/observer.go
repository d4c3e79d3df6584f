package copypipeline

// ProgressObserver is how a CopyAlgorithm reports progress and checks
// control signals (pause/stop) while it runs. CopyWorker implements this
// interface and is the only type algorithms ever talk to.
type ProgressObserver interface {
	// OnProgress reports cumulative bytes copied against the task total.
	OnProgress(copied, total int64)

	// OnFileStart is called when a new file within the task begins copying.
	OnFileStart(path string)

	// OnFileComplete is called when a file finishes copying successfully.
	OnFileComplete(path string)

	// OnError reports an error that ends the copy of the current file; the
	// algorithm returns an error right after calling it.
	OnError(message string)

	// ShouldStop reports whether the task has been asked to stop. An
	// algorithm must check this between files (and ideally between chunks
	// of a large file) and abort promptly when true.
	ShouldStop() bool

	// ShouldPause reports whether the task has been asked to pause.
	ShouldPause() bool

	// WaitWhilePaused blocks the calling goroutine until the task is
	// resumed or stopped.
	WaitWhilePaused()
}
