package sched

// A SourceScheduler assigns the Splits of one plan node to tasks, one Lifespan at a time
type SourceScheduler interface {
	PlanNodeID() PlanNodeID                                        // PlanNodeID returns the plan node this scheduler serves
	StartLifespan(lifespan Lifespan, handle PartitionHandle) error // StartLifespan begins enumerating and assigning Splits for a Lifespan. Called at most once per Lifespan.
	Schedule() (*ScheduleResult, error)                            // Schedule assigns newly available Splits without blocking
	DrainCompletedLifespans() ([]Lifespan, error)                  // DrainCompletedLifespans returns, and forgets, Lifespans whose Splits have all been assigned since the last call
	Close() error                                                  // Close releases the underlying SplitSource. Safe to call more than once.
}

// A StageScheduler drives the scheduling of an entire stage. Schedule is polled
// repeatedly by a single loop until the result reports Finished.
type StageScheduler interface {
	Schedule() (*ScheduleResult, error)
	Close() error
}
