/*
Package copypipeline implements the copy pipeline (CP): a CopyTask state
machine driving a CopyWorker goroutine through a pluggable CopyAlgorithm,
reporting progress through the ProgressObserver contract.

# Architecture

	┌─────────────────────── TaskManager ───────────────────────┐
	│  algorithm registry: name -> CopyAlgorithm                  │
	│  at most one active CopyTask at a time                      │
	└──────────────────────────┬──────────────────────────────────┘
	                           │ creates
	┌──────────────────────────▼──────────────────────────────────┐
	│                        CopyTask                                │
	│  Created → Running → Paused ⇄ Running → Completed|Stopped|Error│
	└──────────────────────────┬──────────────────────────────────┘
	                           │ owns
	┌──────────────────────────▼──────────────────────────────────┐
	│                       CopyWorker (goroutine)                   │
	│  implements ProgressObserver; forwards events over a channel   │
	└──────────────────────────┬──────────────────────────────────┘
	                           │ delegates file I/O to
	┌──────────────────────────▼──────────────────────────────────┐
	│                      CopyAlgorithm                             │
	│  DefaultAlgorithm: kernel range-copy, chunked fallback          │
	│  SyncAlgorithm: O_SYNC + tiered chunk size + fsync on completion│
	└────────────────────────────────────────────────────────────┘

# Progress reporting

CopyWorker's copy goroutine never mutates CopyTask fields directly; it
sends progress and completion events over a buffered channel that a
separate pump goroutine drains and applies to the task. Start, Pause and
Resume change the task's state on the caller's goroutine, under the task's
mutex.
*/
package copypipeline
