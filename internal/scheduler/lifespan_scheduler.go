package scheduler

import (
	"sort"
	"sync"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
	"github.com/go-sif/sched/internal/stats"
	"github.com/go-sif/sched/logging"
)

// driverGroupCursor hands out the driver groups of one Node, each exactly once
type driverGroupCursor struct {
	groups []int
	next   int
}

func (c *driverGroupCursor) hasNext() bool {
	return c.next < len(c.groups)
}

func (c *driverGroupCursor) nextGroup() int {
	g := c.groups[c.next]
	c.next++
	return g
}

// LifespanScheduler admits driver groups for execution in a grouped stage. One driver group
// runs per Node at a time, and a finished driver group is replaced by the next unstarted
// driver group of the same Node.
type LifespanScheduler struct {
	lock                          sync.Mutex
	driverGroupToNode             map[int]sched.Node
	nodeToDriverGroups            map[sched.Node]*driverGroupCursor
	nodeOrder                     []sched.Node // Nodes, ordered by their first bucket
	partitionHandles              []sched.PartitionHandle
	statsTracker                  *stats.SchedulingStatistics
	initialScheduled              bool
	newDriverGroupReady           *sched.SettableFuture
	recentlyCompletedDriverGroups []sched.Lifespan
}

// CreateLifespanScheduler derives the driver groups of every Node from a NodePartitionMap.
// statsTracker may be nil.
func CreateLifespanScheduler(partitioning *sched.NodePartitionMap, partitionHandles []sched.PartitionHandle, statsTracker *stats.SchedulingStatistics) *LifespanScheduler {
	driverGroupToNode := make(map[int]sched.Node)
	nodeToDriverGroups := make(map[sched.Node]*driverGroupCursor)
	var nodeOrder []sched.Node
	for bucket, partition := range partitioning.BucketToPartition() {
		node, _ := partitioning.NodeForPartition(partition)
		cursor, ok := nodeToDriverGroups[node]
		if !ok {
			cursor = &driverGroupCursor{}
			nodeToDriverGroups[node] = cursor
			nodeOrder = append(nodeOrder, node)
		}
		cursor.groups = append(cursor.groups, bucket)
		driverGroupToNode[bucket] = node
	}
	return &LifespanScheduler{
		driverGroupToNode:   driverGroupToNode,
		nodeToDriverGroups:  nodeToDriverGroups,
		nodeOrder:           nodeOrder,
		partitionHandles:    partitionHandles,
		statsTracker:        statsTracker,
		newDriverGroupReady: sched.CreateSettableFuture(),
	}
}

// ScheduleInitial starts the first driver group of every Node. It may only be called once.
func (l *LifespanScheduler) ScheduleInitial(scheduler sched.SourceScheduler) error {
	l.lock.Lock()
	if l.initialScheduled {
		l.lock.Unlock()
		return errors.IllegalStatef("initial driver groups of plan node %s were already scheduled", scheduler.PlanNodeID())
	}
	l.initialScheduled = true
	var toStart []int
	for _, node := range l.nodeOrder {
		cursor := l.nodeToDriverGroups[node]
		if cursor.hasNext() {
			toStart = append(toStart, cursor.nextGroup())
		}
	}
	l.lock.Unlock()
	return l.startDriverGroups(scheduler, toStart)
}

// OnLifespanFinished queues driver groups which finished execution, so that the next call to
// Schedule replaces them. It may be called from any goroutine.
func (l *LifespanScheduler) OnLifespanFinished(newlyCompletedDriverGroups []sched.Lifespan) error {
	l.lock.Lock()
	if !l.initialScheduled {
		l.lock.Unlock()
		return errors.IllegalStatef("driver groups %v finished before any were scheduled", newlyCompletedDriverGroups)
	}
	var err error
	accepted := 0
	for _, lifespan := range newlyCompletedDriverGroups {
		if lifespan.IsTaskWide() {
			err = errors.IllegalStatef("%s reported as a finished driver group", lifespan)
			continue
		}
		l.recentlyCompletedDriverGroups = append(l.recentlyCompletedDriverGroups, lifespan)
		accepted++
	}
	ready := l.newDriverGroupReady
	l.lock.Unlock()

	if l.statsTracker != nil {
		l.statsTracker.RecordLifespansCompleted(accepted)
	}
	// wake the polling loop even on error, so that it observes the failure promptly.
	// Set runs listeners, so it happens outside the lock.
	ready.Set()
	return err
}

// Schedule starts a replacement for every driver group which finished since the last call.
// It returns a fresh Future on every call, which completes when another driver group finishes.
func (l *LifespanScheduler) Schedule(scheduler sched.SourceScheduler) (sched.Future, error) {
	l.lock.Lock()
	if !l.initialScheduled {
		l.lock.Unlock()
		return nil, errors.IllegalStatef("driver groups of plan node %s were scheduled before the initial ones", scheduler.PlanNodeID())
	}
	completed := l.recentlyCompletedDriverGroups
	l.recentlyCompletedDriverGroups = nil
	l.newDriverGroupReady = sched.CreateSettableFuture()
	ready := l.newDriverGroupReady
	var toStart []int
	for _, driverGroup := range completed {
		cursor := l.nodeToDriverGroups[l.driverGroupToNode[driverGroup.ID()]]
		if cursor == nil || !cursor.hasNext() {
			continue
		}
		toStart = append(toStart, cursor.nextGroup())
	}
	l.lock.Unlock()

	if err := l.startDriverGroups(scheduler, toStart); err != nil {
		return nil, err
	}
	return ready, nil
}

// remainingDriverGroups returns the number of driver groups not yet started
func (l *LifespanScheduler) remainingDriverGroups() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	remaining := 0
	for _, cursor := range l.nodeToDriverGroups {
		remaining += len(cursor.groups) - cursor.next
	}
	return remaining
}

// startDriverGroups starts driver groups outside the lock, since SourceSchedulers take their own
func (l *LifespanScheduler) startDriverGroups(scheduler sched.SourceScheduler, driverGroups []int) error {
	sort.Ints(driverGroups)
	for _, driverGroup := range driverGroups {
		if driverGroup >= len(l.partitionHandles) {
			return errors.IllegalStatef("no partition handle for driver group %d", driverGroup)
		}
		lifespan := sched.DriverGroup(driverGroup)
		if err := scheduler.StartLifespan(lifespan, l.partitionHandles[driverGroup]); err != nil {
			return err
		}
		logging.Logger.Debug().
			Str("plan_node", string(scheduler.PlanNodeID())).
			Str("lifespan", lifespan.String()).
			Str("node", l.driverGroupToNode[driverGroup].String()).
			Msg("Admitted driver group")
	}
	if l.statsTracker != nil {
		l.statsTracker.RecordLifespansStarted(len(driverGroups))
	}
	return nil
}
