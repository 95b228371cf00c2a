package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerOptionsDefaults(t *testing.T) {
	opts := &SchedulerOptions{ConcurrentLifespans: 2}
	require.Nil(t, EnsureDefaultSchedulerOptions(opts))
	require.Equal(t, 1000, opts.SplitBatchSize)
	require.Equal(t, 100, opts.MaxSplitsPerNode)
	require.Equal(t, 10, opts.MaxPendingSplitsPerTask)

	clone := CloneSchedulerOptions(opts)
	clone.SplitBatchSize = 1
	require.Equal(t, 1000, opts.SplitBatchSize)

	require.Error(t, EnsureDefaultSchedulerOptions(&SchedulerOptions{SplitBatchSize: -1}))
	require.Error(t, EnsureDefaultSchedulerOptions(&SchedulerOptions{ConcurrentLifespans: -1}))
	require.Error(t, EnsureDefaultSchedulerOptions(&SchedulerOptions{MaxPendingSplitsPerTask: -1}))
}

func TestPerLifespanBatchSize(t *testing.T) {
	opts := &SchedulerOptions{SplitBatchSize: 100}
	require.Equal(t, 25, opts.PerLifespanBatchSize(4))
	require.Equal(t, 100, opts.PerLifespanBatchSize(1))

	opts.ConcurrentLifespans = 2
	require.Equal(t, 50, opts.PerLifespanBatchSize(8))
	require.Equal(t, 100, opts.PerLifespanBatchSize(1))

	opts.SplitBatchSize = 3
	opts.ConcurrentLifespans = 0
	require.Equal(t, 1, opts.PerLifespanBatchSize(8))
	require.Equal(t, 3, opts.PerLifespanBatchSize(0))
}
