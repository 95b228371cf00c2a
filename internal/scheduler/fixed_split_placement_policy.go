package scheduler

import (
	"github.com/go-sif/sched"
)

// FixedSplitPlacementPolicy places splits according to a NodePartitionMap which was fixed
// before any task was launched
type FixedSplitPlacementPolicy struct {
	nodeSelector sched.NodeSelector
	partitioning *sched.NodePartitionMap
	remoteTasks  func() []sched.RemoteTask
}

// CreateFixedSplitPlacementPolicy is a factory for FixedSplitPlacementPolicies.
// remoteTasks is consulted on every placement, so that it reflects the stage's current tasks.
func CreateFixedSplitPlacementPolicy(nodeSelector sched.NodeSelector, partitioning *sched.NodePartitionMap, remoteTasks func() []sched.RemoteTask) *FixedSplitPlacementPolicy {
	return &FixedSplitPlacementPolicy{
		nodeSelector: nodeSelector,
		partitioning: partitioning,
		remoteTasks:  remoteTasks,
	}
}

// ComputeAssignments delegates placement to the NodeSelector
func (p *FixedSplitPlacementPolicy) ComputeAssignments(splits []sched.Split) (*sched.SplitPlacementResult, error) {
	return p.nodeSelector.ComputeAssignments(splits, p.remoteTasks(), p.partitioning)
}

// LockDownNodes does nothing, since the Nodes of a fixed partitioning never change
func (p *FixedSplitPlacementPolicy) LockDownNodes() {}

// AllNodes returns the Node of every partition, in partition order
func (p *FixedSplitPlacementPolicy) AllNodes() []sched.Node {
	partitions := p.partitioning.Partitions()
	nodes := make([]sched.Node, 0, len(partitions))
	for _, partition := range partitions {
		node, _ := p.partitioning.NodeForPartition(partition)
		nodes = append(nodes, node)
	}
	return nodes
}

// NodeForBucket resolves bucket -> partition -> Node
func (p *FixedSplitPlacementPolicy) NodeForBucket(bucket int) sched.Node {
	return p.partitioning.NodeForBucket(bucket)
}
