package sched

// SplitPlacementResult describes where Splits should be placed.
// Splits missing from Assignments could not be placed; Blocked completes
// when placing them might succeed. Blocked may consult task queues when it is
// first observed, so Assignments should be handed to the tasks before that.
type SplitPlacementResult struct {
	Assignments map[Node][]Split
	Blocked     Future
}

// NumAssigned returns the number of Splits placed by this result
func (r *SplitPlacementResult) NumAssigned() int {
	n := 0
	for _, splits := range r.Assignments {
		n += len(splits)
	}
	return n
}

// A NodeSelector decides which Node runs each Split, given the stage's current tasks
// and its fixed partitioning
type NodeSelector interface {
	ComputeAssignments(splits []Split, tasks []RemoteTask, partitioning *NodePartitionMap) (*SplitPlacementResult, error)
}

// A SplitPlacementPolicy places Splits for a single stage
type SplitPlacementPolicy interface {
	ComputeAssignments(splits []Split) (*SplitPlacementResult, error) // ComputeAssignments places Splits on Nodes
	LockDownNodes()                                                   // LockDownNodes prevents the set of Nodes from changing
	AllNodes() []Node                                                 // AllNodes returns every Node which may receive Splits
}
