package swf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(SchedulerConfig{MaxWorkers: 2, MaxWorkersPerHost: 1})
}

func TestScheduler_AcquireWorkerCreatesOnePerHost(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()
	s.RegisterProtocol("dfm", "/bin/true", nil)

	pq := s.protocol["dfm"]
	launchCfg := s.launcher["dfm"]

	w1, err := s.acquireWorker(nil, pq, launchCfg, "host-a", "")
	require.NoError(t, err)
	require.NotNil(t, w1)

	w1.refs = 1 // simulate in-use so the next acquire must check capacity, not reuse

	_, err = s.acquireWorker(nil, pq, launchCfg, "host-a", "")
	assert.ErrorIs(t, err, errNoCapacity)
}

func TestScheduler_AcquireWorkerReusesIdleWorker(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()
	s.RegisterProtocol("dfm", "/bin/true", nil)

	pq := s.protocol["dfm"]
	launchCfg := s.launcher["dfm"]

	w1, err := s.acquireWorker(nil, pq, launchCfg, "host-a", "")
	require.NoError(t, err)

	w2, err := s.acquireWorker(nil, pq, launchCfg, "host-a", "")
	require.NoError(t, err)
	assert.Same(t, w1, w2)
}

func TestScheduler_AcquireWorkerRespectsTotalCap(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()
	s.RegisterProtocol("dfm", "/bin/true", nil)

	pq := s.protocol["dfm"]
	launchCfg := s.launcher["dfm"]

	for _, host := range []string{"host-a", "host-b"} {
		w, err := s.acquireWorker(nil, pq, launchCfg, host, "")
		require.NoError(t, err)
		w.refs = 1
	}

	_, err := s.acquireWorker(nil, pq, launchCfg, "host-c", "")
	assert.ErrorIs(t, err, errNoCapacity)
}

func TestScheduler_JobFinishedReleasesWorkerAndSetsState(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()
	s.RegisterProtocol("dfm", "/bin/true", nil)

	pq := s.protocol["dfm"]
	launchCfg := s.launcher["dfm"]
	w, err := s.acquireWorker(nil, pq, launchCfg, "host-a", "")
	require.NoError(t, err)
	w.refs = 1

	job := NewSimpleJob("job-1", "dfm", "host-a", "dfm://host-a/file.txt", CommandCopy, 0, nil)
	job.SetState(JobRunning)

	s.jobFinished(job, JobResult{JobID: "job-1", Error: ErrorKindNone})

	assert.Equal(t, JobFinished, job.State())
	assert.Equal(t, 0, w.RefCount())
}

func TestScheduler_CancelJobSetsCanceledState(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()
	s.RegisterProtocol("dfm", "/bin/true", nil)

	job := NewSimpleJob("job-1", "dfm", "host-a", "dfm://host-a/file.txt", CommandCopy, 0, nil)
	job.SetState(JobRunning)

	s.cancelJob(job)
	assert.Equal(t, JobCanceled, job.State())
}

func TestScheduler_PutWorkerOnHoldReservesWorkerForURL(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()
	s.RegisterProtocol("dfm", "/bin/true", nil)

	pq := s.protocol["dfm"]
	launchCfg := s.launcher["dfm"]

	w, err := s.acquireWorker(nil, pq, launchCfg, "host-a", "")
	require.NoError(t, err)

	job := NewSimpleJob("job-1", "dfm", "host-a", "dfm://host-a/file.txt", CommandCopy, 0, nil)
	job.SetState(JobRunning)

	pq.mu.Lock()
	hq := pq.hosts["host-a"]
	pq.mu.Unlock()
	hq.mu.Lock()
	hq.jobs[job.ID()] = job
	hq.mu.Unlock()

	require.NoError(t, s.putWorkerOnHold(job, job.URL()))
	assert.Equal(t, 0, w.RefCount())

	heldURL, held := w.HeldURL()
	assert.True(t, held)
	assert.Equal(t, job.URL(), heldURL)

	_, eligible := w.IdleFor()
	assert.False(t, eligible, "a held worker must not be eligible for idle reaping")

	reused, err := s.acquireWorker(nil, pq, launchCfg, "host-a", job.URL())
	require.NoError(t, err)
	assert.Same(t, w, reused, "a job targeting the held URL must reclaim the exact worker it was reserved on")

	_, held = w.HeldURL()
	assert.False(t, held, "reclaiming a held worker clears the hold")
}

func TestScheduler_AcquireWorkerSkipsHeldWorkerForDifferentURL(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()
	s.RegisterProtocol("dfm", "/bin/true", nil)

	pq := s.protocol["dfm"]
	launchCfg := s.launcher["dfm"]

	w, err := s.acquireWorker(nil, pq, launchCfg, "host-a", "")
	require.NoError(t, err)
	w.Hold("dfm://host-a/reserved.txt")

	_, err = s.acquireWorker(nil, pq, launchCfg, "host-a", "dfm://host-a/other.txt")
	assert.ErrorIs(t, err, errNoCapacity, "a held worker must not be handed to an unrelated job even at zero refs")
}
