package sched

import "time"

// SchedulingStatistics facilitates the retrieval of statistics about the scheduling of a stage
type SchedulingStatistics interface {
	// GetStartTime returns the time of the first poll
	GetStartTime() time.Time
	// GetRuntime returns the time spent scheduling so far
	GetRuntime() time.Duration
	// GetNumPolls returns the number of polls so far
	GetNumPolls() int64
	// GetNumBlockedPolls returns the number of polls which reported a BlockedReason, counted by reason
	GetNumBlockedPolls() map[BlockedReason]int64
	// GetSplitsScheduled returns the number of splits scheduled so far, counted by plan node
	GetSplitsScheduled() map[PlanNodeID]int64
	// GetNumLifespansStarted returns the number of driver groups admitted so far
	GetNumLifespansStarted() int64
	// GetNumLifespansCompleted returns the number of driver groups which finished execution so far
	GetNumLifespansCompleted() int64
	// GetNumTasksCreated returns the number of tasks created
	GetNumTasksCreated() int64
}
