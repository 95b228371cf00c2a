package scheduler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
	"github.com/go-sif/sched/logging"
)

type scheduleGroupState int

const (
	// no splits have been assigned for the group yet
	groupInitialized scheduleGroupState = iota
	// at least one split has been assigned
	groupSplitsAdded
	// the split source produced its last batch for the group, but splits may be pending
	groupNoMoreSplits
	// every split of the group has been assigned
	groupDone
)

type schedulerState int

const (
	stateInitialized schedulerState = iota
	stateSplitsAdded
	stateNoMoreSplits
	stateFinished
)

// bucketNodeResolver is implemented by placement policies which know which Node owns a bucket
type bucketNodeResolver interface {
	NodeForBucket(bucket int) sched.Node
}

// scheduleGroup tracks the scheduling of a single Lifespan
type scheduleGroup struct {
	lifespan       sched.Lifespan
	handle         sched.PartitionHandle
	pendingSplits  []sched.Split
	nextSplitBatch *sched.SplitBatchFuture
	placement      sched.Future
	state          scheduleGroupState
}

// SourcePartitionedScheduler pulls splits for one plan node from its SplitSource, and assigns
// them to tasks, for every Lifespan which has been started on it
type SourcePartitionedScheduler struct {
	lock            sync.Mutex
	stage           sched.Stage
	planNode        sched.PlanNodeID
	splitSource     sched.SplitSource
	placementPolicy sched.SplitPlacementPolicy
	splitBatchSize  int

	groups        []*scheduleGroup // in the order their Lifespans were started
	startedGroups map[sched.Lifespan]bool
	lifespanAdded bool
	state         schedulerState
	sourceClosed  bool

	// completes when the scheduler finishes, or a new Lifespan is started
	finishedOrNewLifespanAdded *sched.SettableFuture
}

// CreateSourcePartitionedScheduler is a factory for SourcePartitionedSchedulers
func CreateSourcePartitionedScheduler(stage sched.Stage, planNode sched.PlanNodeID, splitSource sched.SplitSource, placementPolicy sched.SplitPlacementPolicy, splitBatchSize int) (*SourcePartitionedScheduler, error) {
	if stage == nil || splitSource == nil || placementPolicy == nil {
		return nil, errors.Invalidf("stage, split source and placement policy are required for plan node %s", planNode)
	}
	if splitBatchSize <= 0 {
		return nil, errors.Invalidf("split batch size must be greater than 0, got %d", splitBatchSize)
	}
	return &SourcePartitionedScheduler{
		stage:                      stage,
		planNode:                   planNode,
		splitSource:                splitSource,
		placementPolicy:            placementPolicy,
		splitBatchSize:             splitBatchSize,
		startedGroups:              make(map[sched.Lifespan]bool),
		finishedOrNewLifespanAdded: sched.CreateSettableFuture(),
	}, nil
}

// PlanNodeID returns the plan node this scheduler serves
func (s *SourcePartitionedScheduler) PlanNodeID() sched.PlanNodeID {
	return s.planNode
}

// StartLifespan begins enumerating splits for a Lifespan
func (s *SourcePartitionedScheduler) StartLifespan(lifespan sched.Lifespan, handle sched.PartitionHandle) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != stateInitialized && s.state != stateSplitsAdded {
		return errors.IllegalStatef("cannot start %s on plan node %s after all of its splits were scheduled", lifespan, s.planNode)
	}
	if s.startedGroups[lifespan] {
		return errors.IllegalStatef("%s was already started on plan node %s", lifespan, s.planNode)
	}
	s.startedGroups[lifespan] = true
	s.groups = append(s.groups, &scheduleGroup{lifespan: lifespan, handle: handle, state: groupInitialized})
	s.lifespanAdded = true
	s.signalFinishedOrNewLifespanAdded()
	logging.Logger.Debug().
		Str("plan_node", string(s.planNode)).
		Str("lifespan", lifespan.String()).
		Str("partition_handle", handle.ToString()).
		Msg("Started lifespan")
	return nil
}

// Schedule fetches and assigns whatever splits are available, without blocking
func (s *SourcePartitionedScheduler) Schedule() (*sched.ScheduleResult, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	splitsScheduled := 0
	var blocked []sched.Future
	anyBlockedOnPlacements := false
	anyBlockedOnNextSplitBatch := false
	anyNotBlocked := false

	for _, group := range s.groups {
		if group.state != groupNoMoreSplits && group.state != groupDone && len(group.pendingSplits) == 0 {
			// try to get the next batch
			if group.nextSplitBatch == nil {
				group.nextSplitBatch = s.splitSource.NextBatch(group.handle, group.lifespan, s.splitBatchSize)
			}
			if !group.nextSplitBatch.IsDone() {
				blocked = append(blocked, group.nextSplitBatch)
				anyBlockedOnNextSplitBatch = true
				continue
			}
			batch, err := group.nextSplitBatch.Get()
			group.nextSplitBatch = nil
			if err != nil {
				return nil, fmt.Errorf("Unable to fetch splits for %s of plan node %s: %w", group.lifespan, s.planNode, err)
			}
			group.pendingSplits = append(group.pendingSplits, batch.Splits...)
			if batch.LastBatch {
				if group.state == groupInitialized && len(group.pendingSplits) == 0 {
					// schedule a placeholder, so that drivers which produce output without input still run
					group.pendingSplits = append(group.pendingSplits, sched.EmptySplit(group.lifespan))
				}
				group.state = groupNoMoreSplits
			}
		}

		var assignments map[sched.Node][]sched.Split
		if len(group.pendingSplits) > 0 {
			if group.placement != nil && !group.placement.IsDone() {
				blocked = append(blocked, group.placement)
				anyBlockedOnPlacements = true
				continue
			}
			if group.state == groupInitialized {
				group.state = groupSplitsAdded
			}
			if s.state == stateInitialized {
				s.state = stateSplitsAdded
			}
			placement, err := s.placementPolicy.ComputeAssignments(group.pendingSplits)
			if err != nil {
				return nil, fmt.Errorf("Unable to place splits for %s of plan node %s: %w", group.lifespan, s.planNode, err)
			}
			assignments = placement.Assignments
			group.pendingSplits = withoutAssigned(group.pendingSplits, assignments)
			splitsScheduled += placement.NumAssigned()
			// if not completely placed, the group waits on placement
			if len(group.pendingSplits) > 0 {
				group.placement = placement.Blocked
				if group.placement == nil {
					group.placement = sched.ImmediateFuture()
				}
				blocked = append(blocked, group.placement)
				anyBlockedOnPlacements = true
			}
		}

		// if no new splits will be assigned, tell the owning task that the driver group is complete
		var noMoreSplits map[sched.Node][]sched.Lifespan
		if len(group.pendingSplits) == 0 && group.state == groupNoMoreSplits {
			group.state = groupDone
			if !group.lifespan.IsTaskWide() {
				resolver, ok := s.placementPolicy.(bucketNodeResolver)
				if !ok {
					return nil, errors.IllegalStatef("placement policy of plan node %s cannot resolve the node of %s", s.planNode, group.lifespan)
				}
				noMoreSplits = map[sched.Node][]sched.Lifespan{resolver.NodeForBucket(group.lifespan.ID()): {group.lifespan}}
			}
		}

		if err := s.assignSplits(assignments, noMoreSplits); err != nil {
			return nil, err
		}

		if group.nextSplitBatch == nil && len(group.pendingSplits) == 0 && group.state != groupDone {
			anyNotBlocked = true
		}
	}

	// Only claim to be finished once every started lifespan has been drained, and the split
	// source has nothing more for any partition.
	if s.state == stateNoMoreSplits || s.state == stateFinished || (s.lifespanAdded && len(s.groups) == 0 && s.splitSource.IsFinished()) {
		switch s.state {
		case stateInitialized:
			return nil, errors.IllegalStatef("at least 1 split should have been scheduled for plan node %s", s.planNode)
		case stateSplitsAdded:
			s.state = stateNoMoreSplits
			s.closeSplitSource()
			fallthrough
		case stateNoMoreSplits:
			s.state = stateFinished
			s.finishedOrNewLifespanAdded.Set()
			fallthrough
		default:
			return sched.NonBlockedResult(true, nil, splitsScheduled), nil
		}
	}

	if anyNotBlocked {
		return sched.NonBlockedResult(false, nil, splitsScheduled), nil
	}

	var reason sched.BlockedReason
	if anyBlockedOnNextSplitBatch {
		if anyBlockedOnPlacements {
			reason = sched.MixedSplitQueuesFullAndWaitingForSource
		} else {
			reason = sched.WaitingForSource
		}
	} else if anyBlockedOnPlacements {
		reason = sched.SplitQueuesFull
	} else {
		reason = sched.NoActiveDriverGroup
	}
	blocked = append(blocked, s.finishedOrNewLifespanAdded)
	return sched.BlockedResult(false, nil, sched.WhenAnyComplete(blocked...), reason, splitsScheduled), nil
}

// DrainCompletedLifespans returns and forgets the Lifespans whose splits have all been assigned
func (s *SourcePartitionedScheduler) DrainCompletedLifespans() ([]sched.Lifespan, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.groups) == 0 {
		// the split source may already be closed, so it must not be consulted
		return nil, nil
	}
	var result []sched.Lifespan
	remaining := s.groups[:0]
	for _, group := range s.groups {
		if group.state == groupDone {
			result = append(result, group.lifespan)
		} else {
			remaining = append(remaining, group)
		}
	}
	for i := len(remaining); i < len(s.groups); i++ {
		s.groups[i] = nil // for garbage collection
	}
	s.groups = remaining

	if len(s.groups) == 0 && s.splitSource.IsFinished() {
		// wake up the caller, so that the next poll transitions to finished
		s.signalFinishedOrNewLifespanAdded()
	}
	return result, nil
}

// Close releases the SplitSource
func (s *SourcePartitionedScheduler) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.sourceClosed {
		return nil
	}
	s.sourceClosed = true
	return s.splitSource.Close()
}

// closeSplitSource closes the split source once every split has been handed out. Failures are
// logged, since all of the splits have already been assigned. Callers must hold s.lock.
func (s *SourcePartitionedScheduler) closeSplitSource() {
	if s.sourceClosed {
		return
	}
	s.sourceClosed = true
	if err := s.splitSource.Close(); err != nil {
		logging.Logger.Warn().Err(err).Str("plan_node", string(s.planNode)).Msg("Error closing split source")
	}
}

// signalFinishedOrNewLifespanAdded completes the current signal and arms a fresh one.
// Callers must hold s.lock.
func (s *SourcePartitionedScheduler) signalFinishedOrNewLifespanAdded() {
	s.finishedOrNewLifespanAdded.Set()
	s.finishedOrNewLifespanAdded = sched.CreateSettableFuture()
}

func (s *SourcePartitionedScheduler) assignSplits(assignments map[sched.Node][]sched.Split, noMoreSplits map[sched.Node][]sched.Lifespan) error {
	if len(assignments) == 0 && len(noMoreSplits) == 0 {
		return nil
	}
	nodes := make([]sched.Node, 0, len(assignments)+len(noMoreSplits))
	for node := range assignments {
		nodes = append(nodes, node)
	}
	for node := range noMoreSplits {
		if _, ok := assignments[node]; !ok {
			nodes = append(nodes, node)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, node := range nodes {
		if err := s.stage.ScheduleSplits(node, s.planNode, assignments[node], noMoreSplits[node]); err != nil {
			return fmt.Errorf("Unable to assign splits of plan node %s to node %s: %w", s.planNode, node, err)
		}
		logging.Logger.Trace().
			Str("plan_node", string(s.planNode)).
			Str("node", node.String()).
			Int("splits", len(assignments[node])).
			Msg("Assigned splits")
	}
	return nil
}

type splitKey struct {
	id       string
	bucket   int
	lifespan sched.Lifespan
}

// withoutAssigned returns the pending splits which were not placed. Splits sharing an identity are
// removed only as many times as they were assigned.
func withoutAssigned(pending []sched.Split, assignments map[sched.Node][]sched.Split) []sched.Split {
	if len(assignments) == 0 {
		return pending
	}
	assigned := make(map[splitKey]int)
	for _, splits := range assignments {
		for _, split := range splits {
			assigned[splitKey{id: split.ID, bucket: split.Bucket, lifespan: split.Lifespan}]++
		}
	}
	var remaining []sched.Split
	for _, split := range pending {
		key := splitKey{id: split.ID, bucket: split.Bucket, lifespan: split.Lifespan}
		if assigned[key] > 0 {
			assigned[key]--
			continue
		}
		remaining = append(remaining, split)
	}
	return remaining
}
