package selector

import (
	"sort"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
)

// FixedNodeSelector places each Split on the Node which owns its bucket. A Split is held back
// when both its Node and its target task already queue too many Splits.
type FixedNodeSelector struct {
	maxSplitsPerNode        int
	maxPendingSplitsPerTask int
}

// CreateFixedNodeSelector builds a FixedNodeSelector from the split limits in opts.
// Unset limits take their default values.
func CreateFixedNodeSelector(opts *sched.SchedulerOptions) (*FixedNodeSelector, error) {
	if opts == nil {
		opts = &sched.SchedulerOptions{}
	} else {
		opts = sched.CloneSchedulerOptions(opts)
	}
	if err := sched.EnsureDefaultSchedulerOptions(opts); err != nil {
		return nil, err
	}
	return &FixedNodeSelector{
		maxSplitsPerNode:        opts.MaxSplitsPerNode,
		maxPendingSplitsPerTask: opts.MaxPendingSplitsPerTask,
	}, nil
}

// assignmentStats tracks the Splits queued on tasks plus those assigned so far by one call
type assignmentStats struct {
	nodeQueued   map[sched.Node]int
	nodeAssigned map[sched.Node]int
	taskAssigned map[string]int
}

func newAssignmentStats(tasks []sched.RemoteTask) *assignmentStats {
	stats := &assignmentStats{
		nodeQueued:   make(map[sched.Node]int),
		nodeAssigned: make(map[sched.Node]int),
		taskAssigned: make(map[string]int),
	}
	for _, task := range tasks {
		stats.nodeQueued[task.Node()] += task.QueuedSplitCount()
	}
	return stats
}

func (a *assignmentStats) totalSplitCount(node sched.Node) int {
	return a.nodeQueued[node] + a.nodeAssigned[node]
}

func (a *assignmentStats) pendingSplitCount(task sched.RemoteTask) int {
	return task.QueuedSplitCount() + a.taskAssigned[task.ID()]
}

func (a *assignmentStats) addAssignedSplit(node sched.Node, task sched.RemoteTask) {
	a.nodeAssigned[node]++
	if task != nil {
		a.taskAssigned[task.ID()]++
	}
}

// ComputeAssignments places as many Splits as the split limits allow
func (s *FixedNodeSelector) ComputeAssignments(splits []sched.Split, tasks []sched.RemoteTask, partitioning *sched.NodePartitionMap) (*sched.SplitPlacementResult, error) {
	tasksByNode := make(map[sched.Node][]sched.RemoteTask)
	tasksByPartition := make(map[int]sched.RemoteTask)
	for _, task := range tasks {
		tasksByNode[task.Node()] = append(tasksByNode[task.Node()], task)
		tasksByPartition[task.PartitionID()] = task
	}
	stats := newAssignmentStats(tasks)
	assignments := make(map[sched.Node][]sched.Split)
	blockedNodes := make(map[sched.Node]bool)

	for _, split := range splits {
		partition := partitioning.PartitionForSplit(split)
		node, ok := partitioning.NodeForPartition(partition)
		if !ok {
			return nil, errors.IllegalStatef("split %s maps to partition %d, which has no node", split.ID, partition)
		}
		task := tasksByPartition[partition]
		if task == nil && len(tasksByNode[node]) > 0 {
			task = tasksByNode[node][0]
		}
		// before tasks exist, there is nothing to wait on
		if task == nil ||
			stats.totalSplitCount(node) < s.maxSplitsPerNode ||
			stats.pendingSplitCount(task) < s.maxPendingSplitsPerTask {
			assignments[node] = append(assignments[node], split)
			stats.addAssignedSplit(node, task)
			continue
		}
		blockedNodes[node] = true
	}

	blocked := sched.ImmediateFuture()
	if len(blockedNodes) > 0 {
		// the watermark is checked once the assigned splits are queued, not before
		blocked = sched.DeferredFuture(func() sched.Future {
			return s.whenSplitQueuesHaveSpace(blockedNodes, tasksByNode)
		})
	}
	return &sched.SplitPlacementResult{
		Assignments: assignments,
		Blocked:     blocked,
	}, nil
}

// whenSplitQueuesHaveSpace completes once any task on a blocked Node drains below the low watermark
func (s *FixedNodeSelector) whenSplitQueuesHaveSpace(blockedNodes map[sched.Node]bool, tasksByNode map[sched.Node][]sched.RemoteTask) sched.Future {
	nodes := make([]sched.Node, 0, len(blockedNodes))
	for node := range blockedNodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	lowWatermark := (s.maxPendingSplitsPerTask + 1) / 2
	var futures []sched.Future
	for _, node := range nodes {
		for _, task := range tasksByNode[node] {
			futures = append(futures, task.WhenSplitQueueHasSpace(lowWatermark))
		}
	}
	return sched.WhenAnyComplete(futures...)
}
