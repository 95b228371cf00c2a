package scheduler

import (
	"fmt"
	"sync"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
	"github.com/go-sif/sched/internal/stats"
	"github.com/go-sif/sched/internal/util"
	"github.com/go-sif/sched/logging"
	multierror "github.com/hashicorp/go-multierror"
)

// FixedSourcePartitionedScheduler schedules a stage whose tasks are pinned to a fixed
// NodePartitionMap. It creates one task per partition, then drives one SourceScheduler per
// plan node in scheduling order. In a grouped stage, driver groups are admitted by a
// LifespanScheduler attached to the first plan node, and propagated to the following plan
// nodes as each one finishes scheduling them.
//
// Schedule and Close must be called from a single goroutine. Driver group completions may
// arrive from any goroutine.
type FixedSourcePartitionedScheduler struct {
	stage                    sched.Stage
	partitioning             *sched.NodePartitionMap
	partitionHandles         []sched.PartitionHandle
	sourceSchedulers         []sched.SourceScheduler
	groupedLifespanScheduler *LifespanScheduler
	statsTracker             *stats.SchedulingStatistics
	scheduledTasks           bool
	finished                 bool

	listenerLock sync.Mutex
	listenerErr  error
}

// CreateFixedSourcePartitionedScheduler validates its inputs and builds the SourceSchedulers of a
// stage. The first plan node in schedulingOrder starts immediately: task-wide in an ungrouped
// stage, or with one driver group per Node in a grouped one. statsTracker may be nil.
func CreateFixedSourcePartitionedScheduler(
	stage sched.Stage,
	splitSources map[sched.PlanNodeID]sched.SplitSource,
	strategy sched.StageExecutionStrategy,
	schedulingOrder []sched.PlanNodeID,
	partitioning *sched.NodePartitionMap,
	opts *sched.SchedulerOptions,
	nodeSelector sched.NodeSelector,
	partitionHandles []sched.PartitionHandle,
	statsTracker *stats.SchedulingStatistics,
) (*FixedSourcePartitionedScheduler, error) {
	if stage == nil || partitioning == nil || nodeSelector == nil {
		return nil, errors.Invalidf("stage, partitioning and node selector are required")
	}
	if opts == nil {
		opts = &sched.SchedulerOptions{}
	} else {
		opts = sched.CloneSchedulerOptions(opts)
	}
	if err := sched.EnsureDefaultSchedulerOptions(opts); err != nil {
		return nil, err
	}
	if err := validateSchedulerInputs(splitSources, strategy, schedulingOrder, partitioning, partitionHandles); err != nil {
		return nil, err
	}
	if statsTracker == nil {
		statsTracker = stats.CreateSchedulingStatistics()
	}

	s := &FixedSourcePartitionedScheduler{
		stage:            stage,
		partitioning:     partitioning,
		partitionHandles: append([]sched.PartitionHandle(nil), partitionHandles...),
		statsTracker:     statsTracker,
	}
	placementPolicy := CreateFixedSplitPlacementPolicy(nodeSelector, partitioning, stage.AllTasks)
	batchSize := opts.PerLifespanBatchSize(len(partitionHandles))
	grouped := strategy.IsAnyScanGroupedExecution()

	for i, planNode := range schedulingOrder {
		partitioned, err := CreateSourcePartitionedScheduler(stage, planNode, splitSources[planNode], placementPolicy, batchSize)
		if err != nil {
			s.closeAfterFailure()
			return nil, err
		}
		var sourceScheduler sched.SourceScheduler = partitioned
		if grouped && !strategy.IsGroupedExecution(planNode) {
			sourceScheduler = CreateAsGroupedSourceScheduler(sourceScheduler)
		}
		s.sourceSchedulers = append(s.sourceSchedulers, sourceScheduler)

		if i > 0 {
			continue
		}
		if !grouped {
			if err := sourceScheduler.StartLifespan(sched.TaskWide(), sched.NotPartitioned); err != nil {
				s.closeAfterFailure()
				return nil, err
			}
			statsTracker.RecordLifespansStarted(1)
			continue
		}
		lifespanScheduler := CreateLifespanScheduler(partitioning, s.partitionHandles, statsTracker)
		// the first few driver groups
		if err := lifespanScheduler.ScheduleInitial(sourceScheduler); err != nil {
			s.closeAfterFailure()
			return nil, err
		}
		// replacements for finished ones
		stage.AddCompletedDriverGroupsChangedListener(util.SafeDriverGroupListener(lifespanScheduler.OnLifespanFinished, s.recordListenerError))
		s.groupedLifespanScheduler = lifespanScheduler
	}
	logging.Logger.Debug().
		Int("plan_nodes", len(schedulingOrder)).
		Bool("grouped", grouped).
		Int("partitions", partitioning.NumPartitions()).
		Int("split_batch_size", batchSize).
		Msg("Created fixed source partitioned scheduler")
	return s, nil
}

func validateSchedulerInputs(
	splitSources map[sched.PlanNodeID]sched.SplitSource,
	strategy sched.StageExecutionStrategy,
	schedulingOrder []sched.PlanNodeID,
	partitioning *sched.NodePartitionMap,
	partitionHandles []sched.PartitionHandle,
) error {
	var result *multierror.Error
	seen := make(map[sched.PlanNodeID]bool, len(schedulingOrder))
	for _, planNode := range schedulingOrder {
		if seen[planNode] {
			result = multierror.Append(result, errors.Invalidf("plan node %s appears more than once in the scheduling order", planNode))
		}
		seen[planNode] = true
		if source, ok := splitSources[planNode]; !ok || source == nil {
			result = multierror.Append(result, errors.Invalidf("plan node %s has no split source", planNode))
		}
	}
	for planNode := range splitSources {
		if !seen[planNode] {
			result = multierror.Append(result, errors.Invalidf("plan node %s has a split source but is not in the scheduling order", planNode))
		}
	}
	if sched.IsNotPartitionedList(partitionHandles) == strategy.IsAnyScanGroupedExecution() {
		result = multierror.Append(result, errors.Invalidf("partition handles should be [%s] if and only if all scan nodes use ungrouped execution", sched.NotPartitioned.ToString()))
	} else if strategy.IsAnyScanGroupedExecution() && partitioning.NumBuckets() == 0 {
		result = multierror.Append(result, errors.Invalidf("grouped execution needs at least one bucket"))
	} else if strategy.IsAnyScanGroupedExecution() && len(partitionHandles) != partitioning.NumBuckets() {
		result = multierror.Append(result, errors.Invalidf("grouped execution needs one partition handle per bucket, got %d handles for %d buckets", len(partitionHandles), partitioning.NumBuckets()))
	}
	if result != nil {
		result.ErrorFormat = util.FormatMultiError
	}
	return result.ErrorOrNil()
}

// Statistics returns the statistics tracked for this scheduler
func (s *FixedSourcePartitionedScheduler) Statistics() sched.SchedulingStatistics {
	return s.statsTracker
}

// Schedule creates the stage's tasks on the first call, then lets every remaining
// SourceScheduler assign whatever splits it can
func (s *FixedSourcePartitionedScheduler) Schedule() (*sched.ScheduleResult, error) {
	if err := s.takeListenerError(); err != nil {
		return nil, err
	}
	if s.finished {
		return sched.NonBlockedResult(true, nil, 0), nil
	}
	s.statsTracker.Start()

	// schedule a task on every node in the distribution
	var newTasks []sched.RemoteTask
	if !s.scheduledTasks {
		s.scheduledTasks = true
		totalPartitions := s.partitioning.NumPartitions()
		for _, partition := range s.partitioning.Partitions() {
			node, _ := s.partitioning.NodeForPartition(partition)
			task, err := s.stage.ScheduleTask(node, partition, totalPartitions)
			if err != nil {
				return nil, fmt.Errorf("Unable to schedule task for partition %d on node %s: %w", partition, node, err)
			}
			newTasks = append(newTasks, task)
		}
	}

	allBlocked := true
	var blocked []sched.Future
	blockedReason := sched.NoActiveDriverGroup

	if s.groupedLifespanScheduler != nil {
		// Start new driver groups on the first scheduler when previous ones finished execution.
		// A new future is returned every time, so that listeners don't pile up on one.
		ready, err := s.groupedLifespanScheduler.Schedule(s.sourceSchedulers[0])
		if err != nil {
			return nil, err
		}
		blocked = append(blocked, ready)
	}

	splitsScheduled := 0
	remaining := make([]sched.SourceScheduler, 0, len(s.sourceSchedulers))
	var driverGroupsToStart []sched.Lifespan
	for i, sourceScheduler := range s.sourceSchedulers {
		result, drained, err := s.scheduleSource(sourceScheduler, driverGroupsToStart)
		if err != nil {
			// keep whatever has not been closed, so that Close still releases it
			s.sourceSchedulers = append(remaining, s.sourceSchedulers[i:]...)
			return nil, err
		}
		driverGroupsToStart = drained
		splitsScheduled += result.SplitsScheduled
		if result.IsBlocked() {
			blocked = append(blocked, result.Blocked)
			blockedReason = blockedReason.Combine(result.BlockedReason)
		} else {
			allBlocked = false
		}

		if result.Finished {
			planNode := sourceScheduler.PlanNodeID()
			s.stage.SchedulingComplete(planNode)
			if err := util.SafeClose(string(planNode), sourceScheduler); err != nil {
				logging.Logger.Warn().Err(err).Str("plan_node", string(planNode)).Msg("Error closing split source")
			}
			logging.Logger.Debug().Str("plan_node", string(planNode)).Msg("Finished scheduling plan node")
		} else {
			remaining = append(remaining, sourceScheduler)
		}
	}
	s.sourceSchedulers = remaining

	finished := len(s.sourceSchedulers) == 0
	var result *sched.ScheduleResult
	if allBlocked && !finished {
		result = sched.BlockedResult(false, newTasks, sched.WhenAnyComplete(blocked...), blockedReason, splitsScheduled)
	} else {
		result = sched.NonBlockedResult(finished, newTasks, splitsScheduled)
	}
	s.statsTracker.RecordPoll(result)
	if finished {
		s.finished = true
		s.statsTracker.Finish()
	}
	return result, nil
}

// scheduleSource starts the given driver groups on one SourceScheduler, polls it, and returns
// the Lifespans it finished scheduling
func (s *FixedSourcePartitionedScheduler) scheduleSource(sourceScheduler sched.SourceScheduler, driverGroupsToStart []sched.Lifespan) (*sched.ScheduleResult, []sched.Lifespan, error) {
	planNode := sourceScheduler.PlanNodeID()
	for _, lifespan := range driverGroupsToStart {
		handle, err := s.partitionHandleFor(lifespan)
		if err != nil {
			return nil, nil, err
		}
		if err := sourceScheduler.StartLifespan(lifespan, handle); err != nil {
			return nil, nil, err
		}
	}
	result, err := sourceScheduler.Schedule()
	if err != nil {
		return nil, nil, err
	}
	if !result.IsBlocked() && result.Blocked != nil && !result.Blocked.IsDone() {
		return nil, nil, errors.IllegalStatef("scheduler for plan node %s is blocked but did not provide a reason", planNode)
	}
	s.statsTracker.RecordSplitsScheduled(planNode, result.SplitsScheduled)
	drained, err := sourceScheduler.DrainCompletedLifespans()
	if err != nil {
		return nil, nil, err
	}
	return result, drained, nil
}

// Close releases every SourceScheduler which has not finished. Failures are logged rather
// than returned, since they cannot affect the outcome of the stage.
func (s *FixedSourcePartitionedScheduler) Close() error {
	for _, sourceScheduler := range s.sourceSchedulers {
		planNode := string(sourceScheduler.PlanNodeID())
		if err := util.SafeClose(planNode, sourceScheduler); err != nil {
			logging.Logger.Warn().Err(err).Str("plan_node", planNode).Msg("Error closing split source")
		}
	}
	s.sourceSchedulers = nil
	s.finished = true
	return nil
}

func (s *FixedSourcePartitionedScheduler) partitionHandleFor(lifespan sched.Lifespan) (sched.PartitionHandle, error) {
	if lifespan.IsTaskWide() {
		return sched.NotPartitioned, nil
	}
	if lifespan.ID() >= len(s.partitionHandles) {
		return nil, errors.IllegalStatef("no partition handle for %s", lifespan)
	}
	return s.partitionHandles[lifespan.ID()], nil
}

// recordListenerError keeps the first failure of the driver group listener, to be returned
// by the next call to Schedule
func (s *FixedSourcePartitionedScheduler) recordListenerError(err error) {
	logging.Logger.Error().Err(err).Msg("Error admitting driver groups")
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	if s.listenerErr == nil {
		s.listenerErr = err
	}
}

func (s *FixedSourcePartitionedScheduler) takeListenerError() error {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	return s.listenerErr
}

// closeAfterFailure releases the SourceSchedulers built by a failed construction
func (s *FixedSourcePartitionedScheduler) closeAfterFailure() {
	if err := s.Close(); err != nil {
		logging.Logger.Warn().Err(err).Msg("Error closing schedulers after failed construction")
	}
}
