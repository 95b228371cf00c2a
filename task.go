package sched

// PlanNodeID identifies a plan node (a scan operator) within a stage
type PlanNodeID string

// A RemoteTask is a worker-side execution of a stage, on one Node, for one partition
type RemoteTask interface {
	ID() string                                              // ID returns the unique ID of this task
	Node() Node                                              // Node returns the Node this task runs on
	PartitionID() int                                        // PartitionID returns the partition this task is responsible for
	AddSplits(planNode PlanNodeID, splits []Split)           // AddSplits queues Splits for a plan node
	NoMoreSplitsForLifespan(planNode PlanNodeID, l Lifespan) // NoMoreSplitsForLifespan signals that a driver group of a plan node received all its Splits
	NoMoreSplits(planNode PlanNodeID)                        // NoMoreSplits signals that a plan node received all its Splits
	QueuedSplitCount() int                                   // QueuedSplitCount returns the number of Splits queued but not yet processed
	WhenSplitQueueHasSpace(threshold int) Future             // WhenSplitQueueHasSpace completes once QueuedSplitCount drops below threshold
}

// Stage is the handle through which schedulers create tasks and report progress.
// Task lifecycle is owned by the Stage.
type Stage interface {
	ScheduleTask(node Node, partition int, totalPartitions int) (RemoteTask, error)               // ScheduleTask creates a task for a partition on a Node
	ScheduleSplits(node Node, planNode PlanNodeID, splits []Split, noMoreSplits []Lifespan) error // ScheduleSplits hands Splits (and finished driver groups) to the task on a Node
	SchedulingComplete(planNode PlanNodeID)                                                       // SchedulingComplete signals that a plan node has no more Splits
	AddCompletedDriverGroupsChangedListener(listener func(newlyCompleted []Lifespan))             // listener fires when driver groups finish execution
	AllTasks() []RemoteTask                                                                       // AllTasks returns the current tasks, read at call time
}
