package sched

import "fmt"

// A Lifespan identifies a unit of execution within a task: either the whole
// task (task-wide) or a single driver group, identified by its bucket number.
type Lifespan struct {
	grouped bool
	id      int
}

// TaskWide returns the Lifespan covering an entire, ungrouped task
func TaskWide() Lifespan {
	return Lifespan{}
}

// DriverGroup returns the Lifespan for the driver group with the given bucket id
func DriverGroup(id int) Lifespan {
	if id < 0 {
		panic(fmt.Sprintf("driver group id must be non-negative, got %d", id))
	}
	return Lifespan{grouped: true, id: id}
}

// IsTaskWide returns true iff this Lifespan covers an entire task
func (l Lifespan) IsTaskWide() bool {
	return !l.grouped
}

// ID returns the driver group id of this Lifespan. Task-wide Lifespans have an id of 0.
func (l Lifespan) ID() int {
	return l.id
}

// String returns a textual representation of this Lifespan
func (l Lifespan) String() string {
	if l.IsTaskWide() {
		return "TaskWide"
	}
	return fmt.Sprintf("Group%d", l.id)
}
