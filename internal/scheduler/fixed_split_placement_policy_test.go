package scheduler

import (
	"testing"

	"github.com/go-sif/sched"
	"github.com/stretchr/testify/require"
)

// recordingSelector places every split on the first node and records the tasks it was given
type recordingSelector struct {
	seenTasks [][]sched.RemoteTask
}

func (r *recordingSelector) ComputeAssignments(splits []sched.Split, tasks []sched.RemoteTask, partitioning *sched.NodePartitionMap) (*sched.SplitPlacementResult, error) {
	r.seenTasks = append(r.seenTasks, tasks)
	node, _ := partitioning.NodeForPartition(0)
	return &sched.SplitPlacementResult{
		Assignments: map[sched.Node][]sched.Split{node: splits},
		Blocked:     sched.ImmediateFuture(),
	}, nil
}

func TestFixedSplitPlacementPolicy(t *testing.T) {
	partitioning := createPartitioning(t, 3, 6)
	var tasks []sched.RemoteTask
	selector := &recordingSelector{}
	policy := CreateFixedSplitPlacementPolicy(selector, partitioning, func() []sched.RemoteTask { return tasks })

	require.Equal(t, []sched.Node{testNode(0), testNode(1), testNode(2)}, policy.AllNodes())
	require.Equal(t, testNode(2), policy.NodeForBucket(5))
	policy.LockDownNodes()

	result, err := policy.ComputeAssignments(createSplits("scan", 2, 6))
	require.Nil(t, err)
	require.Equal(t, 2, result.NumAssigned())

	// the task list is read on every call
	tasks = []sched.RemoteTask{nil}
	_, err = policy.ComputeAssignments(createSplits("scan", 1, 6))
	require.Nil(t, err)
	require.Len(t, selector.seenTasks, 2)
	require.Empty(t, selector.seenTasks[0])
	require.Len(t, selector.seenTasks[1], 1)
}
