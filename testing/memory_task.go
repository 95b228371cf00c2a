package testing

import (
	"sync"

	"github.com/go-sif/sched"
)

type queuedSplit struct {
	planNode sched.PlanNodeID
	split    sched.Split
}

type spaceWaiter struct {
	threshold int
	future    *sched.SettableFuture
}

// MemoryTask is an in-memory RemoteTask. Splits queue up until they are processed,
// either explicitly via ProcessSplits or by an executor started by LocalRunStage.
type MemoryTask struct {
	lock              sync.Mutex
	id                string
	node              sched.Node
	partition         int
	stage             *MemoryStage
	queue             []queuedSplit
	pendingByLifespan map[sched.PlanNodeID]map[sched.Lifespan]int
	noMoreSplitsFor   map[sched.PlanNodeID][]sched.Lifespan
	noMoreSplits      map[sched.PlanNodeID]bool
	processed         map[sched.PlanNodeID][]sched.Split
	completedGroups   map[sched.Lifespan]bool
	spaceWaiters      []spaceWaiter
	work              chan struct{}
}

func newMemoryTask(id string, node sched.Node, partition int, stage *MemoryStage) *MemoryTask {
	return &MemoryTask{
		id:                id,
		node:              node,
		partition:         partition,
		stage:             stage,
		pendingByLifespan: make(map[sched.PlanNodeID]map[sched.Lifespan]int),
		noMoreSplitsFor:   make(map[sched.PlanNodeID][]sched.Lifespan),
		noMoreSplits:      make(map[sched.PlanNodeID]bool),
		processed:         make(map[sched.PlanNodeID][]sched.Split),
		completedGroups:   make(map[sched.Lifespan]bool),
		work:              make(chan struct{}, 1),
	}
}

// ID returns the unique ID of this task
func (t *MemoryTask) ID() string {
	return t.id
}

// Node returns the Node this task runs on
func (t *MemoryTask) Node() sched.Node {
	return t.node
}

// PartitionID returns the partition this task is responsible for
func (t *MemoryTask) PartitionID() int {
	return t.partition
}

// AddSplits queues Splits for a plan node
func (t *MemoryTask) AddSplits(planNode sched.PlanNodeID, splits []sched.Split) {
	if len(splits) == 0 {
		return
	}
	t.lock.Lock()
	pending, ok := t.pendingByLifespan[planNode]
	if !ok {
		pending = make(map[sched.Lifespan]int)
		t.pendingByLifespan[planNode] = pending
	}
	for _, split := range splits {
		t.queue = append(t.queue, queuedSplit{planNode: planNode, split: split})
		pending[split.Lifespan]++
	}
	t.lock.Unlock()
	t.signalWork()
}

// NoMoreSplitsForLifespan records that a driver group of a plan node received all of its Splits
func (t *MemoryTask) NoMoreSplitsForLifespan(planNode sched.PlanNodeID, lifespan sched.Lifespan) {
	t.lock.Lock()
	t.noMoreSplitsFor[planNode] = append(t.noMoreSplitsFor[planNode], lifespan)
	completed := t.checkDriverGroupsLocked([]sched.Lifespan{lifespan})
	t.lock.Unlock()
	t.stage.driverGroupsCompleted(completed)
	t.signalWork()
}

// NoMoreSplits records that a plan node received all of its Splits
func (t *MemoryTask) NoMoreSplits(planNode sched.PlanNodeID) {
	t.lock.Lock()
	t.noMoreSplits[planNode] = true
	t.lock.Unlock()
	t.signalWork()
}

// QueuedSplitCount returns the number of Splits which have not been processed yet
func (t *MemoryTask) QueuedSplitCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.queue)
}

// WhenSplitQueueHasSpace completes once fewer than threshold Splits are queued
func (t *MemoryTask) WhenSplitQueueHasSpace(threshold int) sched.Future {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.queue) < threshold {
		return sched.ImmediateFuture()
	}
	waiter := spaceWaiter{threshold: threshold, future: sched.CreateSettableFuture()}
	t.spaceWaiters = append(t.spaceWaiters, waiter)
	return waiter.future
}

// ProcessSplits processes up to n queued Splits, in queue order, and returns how many were
// processed. Driver groups which complete as a result are reported to the stage's listeners.
func (t *MemoryTask) ProcessSplits(n int) int {
	t.lock.Lock()
	if n > len(t.queue) {
		n = len(t.queue)
	}
	var touched []sched.Lifespan
	for _, q := range t.queue[:n] {
		t.processed[q.planNode] = append(t.processed[q.planNode], q.split)
		t.pendingByLifespan[q.planNode][q.split.Lifespan]--
		touched = append(touched, q.split.Lifespan)
	}
	t.queue = t.queue[n:]
	completed := t.checkDriverGroupsLocked(touched)
	var ready []*sched.SettableFuture
	waiting := t.spaceWaiters[:0]
	for _, w := range t.spaceWaiters {
		if len(t.queue) < w.threshold {
			ready = append(ready, w.future)
		} else {
			waiting = append(waiting, w)
		}
	}
	t.spaceWaiters = waiting
	t.lock.Unlock()

	for _, f := range ready {
		f.Set()
	}
	t.stage.driverGroupsCompleted(completed)
	return n
}

// IsFinished returns true iff every plan node of the stage received all of its Splits, and
// all of them have been processed
func (t *MemoryTask) IsFinished() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.queue) > 0 {
		return false
	}
	for _, planNode := range t.stage.planNodes {
		if !t.noMoreSplits[planNode] {
			return false
		}
	}
	return true
}

// ProcessedSplits returns the Splits of a plan node processed so far, in processing order
func (t *MemoryTask) ProcessedSplits(planNode sched.PlanNodeID) []sched.Split {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]sched.Split(nil), t.processed[planNode]...)
}

// QueuedSplits returns the Splits of a plan node which have not been processed yet
func (t *MemoryTask) QueuedSplits(planNode sched.PlanNodeID) []sched.Split {
	t.lock.Lock()
	defer t.lock.Unlock()
	var result []sched.Split
	for _, q := range t.queue {
		if q.planNode == planNode {
			result = append(result, q.split)
		}
	}
	return result
}

// NoMoreSplitsLifespans returns the Lifespans of a plan node which received all of their
// Splits, in the order they were reported
func (t *MemoryTask) NoMoreSplitsLifespans(planNode sched.PlanNodeID) []sched.Lifespan {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]sched.Lifespan(nil), t.noMoreSplitsFor[planNode]...)
}

// HasNoMoreSplits returns true iff the plan node received all of its Splits
func (t *MemoryTask) HasNoMoreSplits(planNode sched.PlanNodeID) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.noMoreSplits[planNode]
}

// Work returns a channel which receives when there might be new work for this task
func (t *MemoryTask) Work() <-chan struct{} {
	return t.work
}

func (t *MemoryTask) signalWork() {
	select {
	case t.work <- struct{}{}:
	default:
	}
}

// checkDriverGroupsLocked returns the driver groups among candidates which just completed:
// every grouped plan node has received and processed all of their Splits
func (t *MemoryTask) checkDriverGroupsLocked(candidates []sched.Lifespan) []sched.Lifespan {
	if len(t.stage.groupedPlanNodes) == 0 {
		return nil
	}
	var completed []sched.Lifespan
	for _, lifespan := range candidates {
		if lifespan.IsTaskWide() || t.completedGroups[lifespan] {
			continue
		}
		done := true
		for _, planNode := range t.stage.groupedPlanNodes {
			if t.pendingByLifespan[planNode][lifespan] > 0 || !containsLifespan(t.noMoreSplitsFor[planNode], lifespan) {
				done = false
				break
			}
		}
		if done {
			t.completedGroups[lifespan] = true
			completed = append(completed, lifespan)
		}
	}
	return completed
}

func containsLifespan(lifespans []sched.Lifespan, lifespan sched.Lifespan) bool {
	for _, l := range lifespans {
		if l == lifespan {
			return true
		}
	}
	return false
}
