package swf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleJob_InitialStateQueued(t *testing.T) {
	job := NewSimpleJob("job-1", "dfm", "host-a", "dfm://host-a/file.txt", CommandCopy, FlagOverwrite|FlagRecursive, "payload")
	assert.Equal(t, JobQueued, job.State())
	assert.Equal(t, "job-1", job.ID())
	assert.Equal(t, "dfm", job.Protocol())
	assert.Equal(t, "host-a", job.Host())
	assert.Equal(t, "dfm://host-a/file.txt", job.URL())
	assert.Equal(t, CommandCopy, job.Command())
	assert.Equal(t, FlagOverwrite|FlagRecursive, job.Flags())
	assert.Equal(t, "payload", job.Payload())
}

func TestSimpleJob_SetStateTransitions(t *testing.T) {
	job := NewSimpleJob("job-1", "dfm", "host-a", "dfm://host-a/file.txt", CommandDelete, 0, nil)
	job.SetState(JobRunning)
	assert.Equal(t, JobRunning, job.State())
	job.SetState(JobFinished)
	assert.Equal(t, JobFinished, job.State())
}

func TestJobResult_String(t *testing.T) {
	ok := JobResult{JobID: "job-1", Error: ErrorKindNone}
	assert.Contains(t, ok.String(), "ok")

	failed := JobResult{JobID: "job-2", Error: ErrorKindIO, Detail: "disk full"}
	assert.Contains(t, failed.String(), "disk full")
}

func TestJobFlags_Bitmask(t *testing.T) {
	flags := FlagOverwrite | FlagResume
	assert.NotZero(t, flags&FlagOverwrite)
	assert.NotZero(t, flags&FlagResume)
	assert.Zero(t, flags&FlagRecursive)
}
