package swf

import (
	"fmt"
	"sync"
)

// JobState tracks a Job's lifecycle as seen by the Scheduler.
type JobState int

const (
	JobQueued JobState = iota
	JobRunning
	JobFinished
	JobFailed
	JobCanceled
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobRunning:
		return "running"
	case JobFinished:
		return "finished"
	case JobFailed:
		return "failed"
	case JobCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Job is the unit of work the Scheduler hands to a Worker.
type Job interface {
	ID() string
	Protocol() string
	Host() string
	URL() string
	Command() Command
	Flags() JobFlags
	State() JobState
	SetState(JobState)
	Payload() interface{}
}

// SimpleJob is the common single-/dual-path Job implementation covering
// copy, delete, list, stat, and mkdir commands.
type SimpleJob struct {
	id       string
	protocol string
	host     string
	url      string
	command  Command
	flags    JobFlags
	payload  interface{}

	mu    sync.Mutex
	state JobState
}

// NewSimpleJob creates a queued Job for the given protocol/host pair. url
// identifies the specific resource the job targets (e.g. a full path or
// redirect target), distinct from host: it is what a held Worker is
// reserved against, since two jobs can share a host but target different
// resources on it.
func NewSimpleJob(id, protocol, host, url string, cmd Command, flags JobFlags, payload interface{}) *SimpleJob {
	return &SimpleJob{
		id:       id,
		protocol: protocol,
		host:     host,
		url:      url,
		command:  cmd,
		flags:    flags,
		payload:  payload,
	}
}

func (j *SimpleJob) ID() string         { return j.id }
func (j *SimpleJob) Protocol() string   { return j.protocol }
func (j *SimpleJob) Host() string       { return j.host }
func (j *SimpleJob) URL() string        { return j.url }
func (j *SimpleJob) Command() Command   { return j.command }
func (j *SimpleJob) Flags() JobFlags    { return j.flags }
func (j *SimpleJob) Payload() interface{} { return j.payload }

func (j *SimpleJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *SimpleJob) SetState(s JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

// JobResult is what a worker reports back for a finished or failed Job.
type JobResult struct {
	JobID string    `json:"job_id"`
	Error ErrorKind `json:"error"`
	Detail string   `json:"detail,omitempty"`
}

func (r JobResult) String() string {
	if r.Error == ErrorKindNone {
		return fmt.Sprintf("job %s: ok", r.JobID)
	}
	return fmt.Sprintf("job %s: error %d (%s)", r.JobID, r.Error, r.Detail)
}
