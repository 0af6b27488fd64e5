package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countJob struct {
	name string
	runs int32
	err  error
}

func (j *countJob) Name() string { return j.name }

func (j *countJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func TestCronSchedulerAddAndTrigger(t *testing.T) {
	s := NewCronScheduler()
	job := &countJob{name: "sweep"}
	require.NoError(t, s.AddJob(job, "0 * * * *"))
	require.Error(t, s.AddJob(job, "0 * * * *"))
	require.True(t, s.Next("sweep").IsZero())

	s.Start(context.Background())
	defer s.Stop()
	require.False(t, s.Next("sweep").IsZero())

	require.NoError(t, s.Trigger("sweep"))
	require.EqualValues(t, 1, atomic.LoadInt32(&job.runs))
	require.Error(t, s.Trigger("missing"))
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countJob{name: "bad"}, "every hour"))
}

func TestCronSchedulerJobErrorIsContained(t *testing.T) {
	s := NewCronScheduler()
	job := &countJob{name: "broken", err: errors.New("boom")}
	require.NoError(t, s.AddJob(job, "*/5 * * * *"))
	require.NoError(t, s.Trigger("broken"))
	require.EqualValues(t, 1, atomic.LoadInt32(&job.runs))
}
