package dispatcher

import (
	"context"
	"encoding/json"
)

// Executor runs a task's payload and reports progress. The Master never
// looks inside TaskMessage.Payload; only the Executor registered for a
// given TaskType knows how to interpret it.
type Executor interface {
	// Execute runs the task to completion or failure. progress is written
	// to as the task runs; the caller closes it after Execute returns, so
	// Execute must not close it.
	Execute(ctx context.Context, task TaskMessage, progress chan<- TaskProgress) (json.RawMessage, error)
}
