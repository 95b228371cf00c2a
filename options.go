package sched

import "github.com/go-sif/sched/errors"

// SchedulerOptions configures the scheduling of a stage
type SchedulerOptions struct {
	SplitBatchSize          int // the number of splits to request from a SplitSource per poll, shared by concurrently running lifespans
	ConcurrentLifespans     int // target number of concurrently running driver groups (0 means all buckets)
	MaxSplitsPerNode        int // the number of queued splits a Node may hold across its tasks before placement blocks
	MaxPendingSplitsPerTask int // the number of queued splits a single task may hold before placement blocks
}

// CloneSchedulerOptions makes a copy of a SchedulerOptions
func CloneSchedulerOptions(opts *SchedulerOptions) *SchedulerOptions {
	return &SchedulerOptions{
		SplitBatchSize:          opts.SplitBatchSize,
		ConcurrentLifespans:     opts.ConcurrentLifespans,
		MaxSplitsPerNode:        opts.MaxSplitsPerNode,
		MaxPendingSplitsPerTask: opts.MaxPendingSplitsPerTask,
	}
}

// EnsureDefaultSchedulerOptions validates opts, filling in defaults for options which were not supplied
func EnsureDefaultSchedulerOptions(opts *SchedulerOptions) error {
	if opts.SplitBatchSize < 0 {
		return errors.Invalidf("SchedulerOptions.SplitBatchSize must be greater than 0, got %d", opts.SplitBatchSize)
	}
	if opts.ConcurrentLifespans < 0 {
		return errors.Invalidf("SchedulerOptions.ConcurrentLifespans must not be negative, got %d", opts.ConcurrentLifespans)
	}
	if opts.MaxSplitsPerNode < 0 || opts.MaxPendingSplitsPerTask < 0 {
		return errors.Invalidf("SchedulerOptions split limits must not be negative")
	}
	if opts.SplitBatchSize == 0 {
		opts.SplitBatchSize = 1000
	}
	if opts.MaxSplitsPerNode == 0 {
		opts.MaxSplitsPerNode = 100
	}
	if opts.MaxPendingSplitsPerTask == 0 {
		opts.MaxPendingSplitsPerTask = 10
	}
	return nil
}

// EffectiveConcurrentLifespans clamps ConcurrentLifespans to the number of partition handles
func (o *SchedulerOptions) EffectiveConcurrentLifespans(numPartitionHandles int) int {
	if numPartitionHandles < 1 {
		numPartitionHandles = 1
	}
	if o.ConcurrentLifespans == 0 || o.ConcurrentLifespans > numPartitionHandles {
		return numPartitionHandles
	}
	return o.ConcurrentLifespans
}

// PerLifespanBatchSize is the batch size each SourceScheduler requests per poll
func (o *SchedulerOptions) PerLifespanBatchSize(numPartitionHandles int) int {
	size := o.SplitBatchSize / o.EffectiveConcurrentLifespans(numPartitionHandles)
	if size < 1 {
		return 1
	}
	return size
}
