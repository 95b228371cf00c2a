// Package scheduler builds StageSchedulers for stages whose tasks are pinned to a fixed
// NodePartitionMap.
package scheduler

import (
	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
	"github.com/go-sif/sched/internal/scheduler"
	"github.com/go-sif/sched/internal/stats"
	"github.com/go-sif/sched/selector"
)

// Config describes a stage to schedule
type Config struct {
	Stage            sched.Stage                            // [REQUIRED] creates tasks and receives Splits
	SplitSources     map[sched.PlanNodeID]sched.SplitSource // [REQUIRED] one SplitSource per plan node in SchedulingOrder
	SchedulingOrder  []sched.PlanNodeID                     // [REQUIRED] the order in which plan nodes are scheduled
	Partitioning     *sched.NodePartitionMap                // [REQUIRED] maps partitions and buckets to Nodes
	Strategy         sched.StageExecutionStrategy           // which plan nodes use grouped execution (default ungrouped)
	NodeSelector     sched.NodeSelector                     // places Splits on Nodes (default selector.FixedNodeSelector)
	PartitionHandles []sched.PartitionHandle                // one handle per bucket when grouped, [NotPartitioned] otherwise (derived when unset)
	Options          *sched.SchedulerOptions                // batch sizes and split limits
}

// CreateFixedSourcePartitionedScheduler creates a StageScheduler for a fixed-partitioned
// stage, along with the statistics it records while scheduling
func CreateFixedSourcePartitionedScheduler(conf *Config) (sched.StageScheduler, sched.SchedulingStatistics, error) {
	if conf == nil {
		return nil, nil, errors.Invalidf("a scheduler Config is required")
	}
	if conf.Partitioning == nil {
		return nil, nil, errors.Invalidf("Config.Partitioning is required")
	}
	nodeSelector := conf.NodeSelector
	if nodeSelector == nil {
		fixed, err := selector.CreateFixedNodeSelector(conf.Options)
		if err != nil {
			return nil, nil, err
		}
		nodeSelector = fixed
	}
	strategy := conf.Strategy
	partitionHandles := conf.PartitionHandles
	if len(partitionHandles) == 0 {
		if strategy.IsAnyScanGroupedExecution() {
			partitionHandles = sched.BucketPartitionHandles(conf.Partitioning.NumBuckets())
		} else {
			partitionHandles = []sched.PartitionHandle{sched.NotPartitioned}
		}
	}
	statsTracker := stats.CreateSchedulingStatistics()
	s, err := scheduler.CreateFixedSourcePartitionedScheduler(
		conf.Stage,
		conf.SplitSources,
		strategy,
		conf.SchedulingOrder,
		conf.Partitioning,
		conf.Options,
		nodeSelector,
		partitionHandles,
		statsTracker,
	)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Statistics(), nil
}
