package scheduler

import (
	"testing"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
	"github.com/stretchr/testify/require"
)

func TestAsGroupedStartsTaskWideOnce(t *testing.T) {
	inner := newFakeSourceScheduler("probe")
	adapter := CreateAsGroupedSourceScheduler(inner)
	require.Equal(t, sched.PlanNodeID("probe"), adapter.PlanNodeID())

	require.Nil(t, adapter.StartLifespan(sched.DriverGroup(0), sched.BucketPartitionHandle{Bucket: 0}))
	require.Nil(t, adapter.StartLifespan(sched.DriverGroup(1), sched.BucketPartitionHandle{Bucket: 1}))
	require.Equal(t, []sched.Lifespan{sched.TaskWide()}, inner.startedLifespans())
	require.Equal(t, sched.NotPartitioned, inner.started[0].handle)
}

func TestAsGroupedReportsStartedLifespansOnceTaskWideCompletes(t *testing.T) {
	inner := newFakeSourceScheduler("probe")
	inner.drains = [][]sched.Lifespan{nil, {sched.TaskWide()}}
	adapter := CreateAsGroupedSourceScheduler(inner)
	require.Nil(t, adapter.StartLifespan(sched.DriverGroup(0), sched.BucketPartitionHandle{Bucket: 0}))
	require.Nil(t, adapter.StartLifespan(sched.DriverGroup(1), sched.BucketPartitionHandle{Bucket: 1}))

	// task-wide lifespan not complete yet
	completed, err := adapter.DrainCompletedLifespans()
	require.Nil(t, err)
	require.Empty(t, completed)

	completed, err = adapter.DrainCompletedLifespans()
	require.Nil(t, err)
	require.Equal(t, []sched.Lifespan{sched.DriverGroup(0), sched.DriverGroup(1)}, completed)

	// later lifespans complete immediately, without consulting the wrapped scheduler
	require.Nil(t, adapter.StartLifespan(sched.DriverGroup(2), sched.BucketPartitionHandle{Bucket: 2}))
	completed, err = adapter.DrainCompletedLifespans()
	require.Nil(t, err)
	require.Equal(t, []sched.Lifespan{sched.DriverGroup(2)}, completed)
	completed, err = adapter.DrainCompletedLifespans()
	require.Nil(t, err)
	require.Empty(t, completed)
	require.Len(t, inner.startedLifespans(), 1)
}

func TestAsGroupedRejectsUnexpectedCompletions(t *testing.T) {
	inner := newFakeSourceScheduler("probe")
	inner.drains = [][]sched.Lifespan{{sched.DriverGroup(3)}}
	adapter := CreateAsGroupedSourceScheduler(inner)
	require.Nil(t, adapter.StartLifespan(sched.DriverGroup(0), sched.BucketPartitionHandle{Bucket: 0}))
	_, err := adapter.DrainCompletedLifespans()
	require.IsType(t, errors.IllegalStateError{}, err)

	inner = newFakeSourceScheduler("probe")
	inner.drains = [][]sched.Lifespan{{sched.TaskWide(), sched.TaskWide()}}
	adapter = CreateAsGroupedSourceScheduler(inner)
	require.Nil(t, adapter.StartLifespan(sched.DriverGroup(0), sched.BucketPartitionHandle{Bucket: 0}))
	_, err = adapter.DrainCompletedLifespans()
	require.IsType(t, errors.IllegalStateError{}, err)
}

func TestAsGroupedDelegates(t *testing.T) {
	inner := newFakeSourceScheduler("probe")
	inner.results = []*sched.ScheduleResult{sched.NonBlockedResult(false, nil, 4)}
	adapter := CreateAsGroupedSourceScheduler(inner)
	result, err := adapter.Schedule()
	require.Nil(t, err)
	require.Equal(t, 4, result.SplitsScheduled)
	require.Nil(t, adapter.Close())
	require.Equal(t, 1, inner.closes())
}
