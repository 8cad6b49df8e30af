package scheduler

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netport/internal/config"
	"github.com/anstrom/netport/internal/jobs"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/scanning"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []jobs.Request
	err      error
}

func (f *fakeSubmitter) Submit(req jobs.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, req)
	return fmt.Sprintf("job%05d", len(f.requests)), nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testRequest() jobs.Request {
	return jobs.Request{
		Host:        "127.0.0.1",
		Range:       scanning.PortRange{Start: 20, End: 25},
		Concurrency: 10,
		Timeout:     time.Second,
	}
}

func TestAddValidatesSchedule(t *testing.T) {
	s := New(&fakeSubmitter{}, logging.NewDiscard())

	require.NoError(t, s.Add("nightly", "0 3 * * *", testRequest()))
	require.NoError(t, s.Add("hourly", "@hourly", testRequest()))

	tests := []struct {
		name     string
		schedule string
		cron     string
		req      jobs.Request
	}{
		{"missing name", "", "0 3 * * *", testRequest()},
		{"duplicate", "nightly", "0 4 * * *", testRequest()},
		{"bad expression", "broken", "not a cron", testRequest()},
		{"six fields", "seconds", "0 0 3 * * *", testRequest()},
		{"missing host", "nohost", "0 3 * * *", jobs.Request{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Add(tt.schedule, tt.cron, tt.req))
		})
	}

	names := []string{}
	for _, job := range s.Jobs() {
		names = append(names, job.Name)
	}
	assert.Equal(t, []string{"hourly", "nightly"}, names)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	s := New(&fakeSubmitter{}, logging.NewDiscard())
	defaults := config.Default().Scanning

	err := s.LoadConfig([]config.ScheduleConfig{
		{Name: "web", Cron: "*/5 * * * *", Host: "example.test"},
		{Name: "ssh", Cron: "0 * * * *", Host: "10.0.0.1", Range: "22-22", Threads: 1, Timeout: 500 * time.Millisecond},
	}, defaults)
	require.NoError(t, err)

	scheduled := s.Jobs()
	require.Len(t, scheduled, 2)

	ssh := scheduled[0]
	assert.Equal(t, "ssh", ssh.Name)
	assert.Equal(t, scanning.PortRange{Start: 22, End: 22}, ssh.Request.Range)
	assert.Equal(t, 1, ssh.Request.Concurrency)
	assert.Equal(t, 500*time.Millisecond, ssh.Request.Timeout)

	web := scheduled[1]
	assert.Equal(t, scanning.PortRange{Start: 1, End: 1024}, web.Request.Range)
	assert.Equal(t, defaults.Concurrency, web.Request.Concurrency)
	assert.Equal(t, defaults.Timeout, web.Request.Timeout)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	defaults := config.Default().Scanning

	err := New(&fakeSubmitter{}, logging.NewDiscard()).LoadConfig([]config.ScheduleConfig{
		{Name: "bad", Cron: "61 * * * *", Host: "h"},
	}, defaults)
	assert.Error(t, err)

	err = New(&fakeSubmitter{}, logging.NewDiscard()).LoadConfig([]config.ScheduleConfig{
		{Name: "range", Cron: "* * * * *", Host: "h", Range: "9-1"},
	}, defaults)
	assert.Error(t, err)
}

func TestFireSubmitsRequest(t *testing.T) {
	submitter := &fakeSubmitter{}
	s := New(submitter, logging.NewDiscard())
	require.NoError(t, s.Add("nightly", "0 3 * * *", testRequest()))

	s.fire("nightly")
	s.fire("nightly")
	s.fire("unknown")

	require.Equal(t, 2, submitter.count())
	assert.Equal(t, testRequest(), submitter.requests[0])

	job := s.Jobs()[0]
	assert.Equal(t, 2, job.Runs)
	assert.Equal(t, "job00002", job.LastJobID)
	assert.Empty(t, job.LastError)
	assert.False(t, job.LastRun.IsZero())
}

func TestFireRecordsRejection(t *testing.T) {
	s := New(&fakeSubmitter{err: fmt.Errorf("job queue is full")}, logging.NewDiscard())
	require.NoError(t, s.Add("nightly", "0 3 * * *", testRequest()))

	s.fire("nightly")

	job := s.Jobs()[0]
	assert.Equal(t, 1, job.Runs)
	assert.Empty(t, job.LastJobID)
	assert.Equal(t, "job queue is full", job.LastError)
}

func TestStartFiresOnSchedule(t *testing.T) {
	submitter := &fakeSubmitter{}
	s := New(submitter, logging.NewDiscard())
	require.NoError(t, s.Add("fast", "@every 1s", testRequest()))

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	assert.False(t, s.Jobs()[0].NextRun.IsZero())

	assert.Eventually(t, func() bool { return submitter.count() > 0 }, 5*time.Second, 50*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestRemove(t *testing.T) {
	s := New(&fakeSubmitter{}, logging.NewDiscard())
	require.NoError(t, s.Add("nightly", "0 3 * * *", testRequest()))

	require.NoError(t, s.Remove("nightly"))
	assert.Empty(t, s.Jobs())
	assert.Error(t, s.Remove("nightly"))
}
