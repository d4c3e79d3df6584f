package copypipeline

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, task *CopyTask, want TaskState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if task.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task never reached state %s, still %s", want, task.State())
}

func TestCopyTask_CompletesSmallFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	task := NewCopyTask(src, dst, NewDefaultAlgorithm(), nil)
	require.NoError(t, task.Start())

	waitForState(t, task, TaskCompleted, time.Second)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	copied, total := task.Progress()
	assert.Equal(t, total, copied)
}

func TestCopyTask_StartTwiceErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	task := NewCopyTask(src, dst, NewDefaultAlgorithm(), nil)
	require.NoError(t, task.Start())
	waitForState(t, task, TaskCompleted, time.Second)

	assert.Error(t, task.Start())
}

func TestCopyTask_PauseUnsupportedAlgorithmErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, make([]byte, 10*1024*1024), 0o644))

	task := NewCopyTask(src, dst, NewDefaultAlgorithm(), nil)
	require.NoError(t, task.Start())

	err := task.Pause()
	if err == nil {
		// Not expected: DefaultAlgorithm refuses pause while Running, and
		// an already completed task refuses it as no longer Running. If
		// Pause ever succeeds, the copy must still run to completion.
		waitForState(t, task, TaskCompleted, time.Second)
		return
	}
	assert.Error(t, err)
}

func TestCopyTask_PauseResumeWithSyncAlgorithm(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, make([]byte, 4*1024*1024), 0o644))

	task := NewCopyTask(src, dst, NewSyncAlgorithm(), nil)
	require.NoError(t, task.Start())

	_ = task.Pause()
	_ = task.Resume()

	waitForState(t, task, TaskCompleted, 5*time.Second)
}

func TestCopyTask_StopTransitionsToStopped(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, make([]byte, 8*1024*1024), 0o644))

	task := NewCopyTask(src, dst, NewSyncAlgorithm(), nil)
	require.NoError(t, task.Start())
	require.NoError(t, task.Stop())

	waitForState(t, task, TaskStopped, time.Second)
}

func TestCopyTask_OnStartAndOnCompleteHooksFire(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	var mu sync.Mutex
	var started, completed bool
	var onErrorCalled bool

	task := NewCopyTask(src, dst, NewDefaultAlgorithm(), nil)
	task.OnStart = func(tk *CopyTask) {
		mu.Lock()
		defer mu.Unlock()
		started = true
		assert.Equal(t, task.ID(), tk.ID())
	}
	task.OnComplete = func(tk *CopyTask) {
		mu.Lock()
		defer mu.Unlock()
		completed = true
	}
	task.OnError = func(tk *CopyTask, errMsg string) {
		mu.Lock()
		defer mu.Unlock()
		onErrorCalled = true
	}

	require.NoError(t, task.Start())

	mu.Lock()
	assert.True(t, started, "OnStart must run synchronously before Start returns")
	mu.Unlock()

	waitForState(t, task, TaskCompleted, time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, completed)
	assert.False(t, onErrorCalled)
}

func TestCopyTask_HooksDoNotFireWhenStartFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "missing.txt")
	dst := filepath.Join(dir, "dst.txt")

	var mu sync.Mutex
	var errMsg string
	var completeCalled bool

	task := NewCopyTask(src, dst, NewDefaultAlgorithm(), nil)
	task.OnComplete = func(tk *CopyTask) {
		mu.Lock()
		defer mu.Unlock()
		completeCalled = true
	}
	task.OnError = func(tk *CopyTask, msg string) {
		mu.Lock()
		defer mu.Unlock()
		errMsg = msg
	}

	err := task.Start()
	require.Error(t, err, "CalculateTotalSize on a missing source fails before the worker ever starts")

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, errMsg, "OnError is only wired through onFinished; a Start-time failure never reaches the worker")
	assert.False(t, completeCalled)
}

func TestCopyTask_OnCompleteHookDoesNotFireOnStop(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, make([]byte, 8*1024*1024), 0o644))

	var mu sync.Mutex
	var completeCalled, errorCalled bool

	task := NewCopyTask(src, dst, NewSyncAlgorithm(), nil)
	task.OnComplete = func(tk *CopyTask) {
		mu.Lock()
		defer mu.Unlock()
		completeCalled = true
	}
	task.OnError = func(tk *CopyTask, msg string) {
		mu.Lock()
		defer mu.Unlock()
		errorCalled = true
	}

	require.NoError(t, task.Start())
	require.NoError(t, task.Stop())
	waitForState(t, task, TaskStopped, time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, completeCalled, "a stopped (canceled) task is neither a completion nor an error")
	assert.False(t, errorCalled)
}
