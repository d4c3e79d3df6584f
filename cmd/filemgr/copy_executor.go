package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/filemgr/pkg/copypipeline"
	"github.com/cuemby/filemgr/pkg/dispatcher"
	"github.com/cuemby/filemgr/pkg/events"
)

// copyRequest is the TaskMessage.Payload shape a Master sends for
// task type "copy".
type copyRequest struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Algorithm string `json:"algorithm"`
}

// copyExecutor adapts the copy pipeline's TaskManager to the dispatcher's
// Executor interface, letting a slave run copy tasks assigned by a Master.
type copyExecutor struct {
	tm *copypipeline.TaskManager
}

func newCopyExecutor(broker *events.Broker) *copyExecutor {
	return &copyExecutor{tm: copypipeline.NewTaskManager(broker)}
}

func (e *copyExecutor) Execute(ctx context.Context, task dispatcher.TaskMessage, progress chan<- dispatcher.TaskProgress) (json.RawMessage, error) {
	var req copyRequest
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		return nil, fmt.Errorf("decode copy payload: %w", err)
	}
	if req.Algorithm == "" {
		req.Algorithm = "default"
	}

	copyTask, err := e.tm.StartCopy(req.Src, req.Dst, req.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("start copy: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = copyTask.Stop()
			return nil, ctx.Err()
		default:
		}

		state := copyTask.State()
		copied, total := copyTask.Progress()
		var percent float64
		if total > 0 {
			percent = float64(copied) / float64(total) * 100
		}
		select {
		case progress <- dispatcher.TaskProgress{TaskID: task.TaskID, Percent: percent}:
		default:
		}

		switch state {
		case copypipeline.TaskCompleted:
			return json.Marshal(map[string]int64{"bytes_copied": copied})
		case copypipeline.TaskStopped:
			return nil, fmt.Errorf("copy task stopped")
		case copypipeline.TaskError:
			return nil, fmt.Errorf("copy task failed")
		}

		time.Sleep(100 * time.Millisecond)
	}
}
