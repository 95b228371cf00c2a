package scheduler

import (
	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
)

// AsGroupedSourceScheduler presents an ungrouped SourceScheduler as a grouped one, so that a
// stage mixing grouped and ungrouped scans can drive every scheduler with the same Lifespans.
// The wrapped scheduler runs a single task-wide Lifespan; every driver group started on the
// adapter is reported complete once that task-wide Lifespan is.
type AsGroupedSourceScheduler struct {
	sourceScheduler  sched.SourceScheduler
	started          bool
	completed        bool
	pendingCompleted []sched.Lifespan
}

// CreateAsGroupedSourceScheduler wraps an ungrouped SourceScheduler
func CreateAsGroupedSourceScheduler(sourceScheduler sched.SourceScheduler) *AsGroupedSourceScheduler {
	return &AsGroupedSourceScheduler{sourceScheduler: sourceScheduler}
}

// PlanNodeID returns the plan node of the wrapped scheduler
func (s *AsGroupedSourceScheduler) PlanNodeID() sched.PlanNodeID {
	return s.sourceScheduler.PlanNodeID()
}

// StartLifespan records the Lifespan, and starts the task-wide Lifespan on the wrapped
// scheduler the first time it is called
func (s *AsGroupedSourceScheduler) StartLifespan(lifespan sched.Lifespan, handle sched.PartitionHandle) error {
	s.pendingCompleted = append(s.pendingCompleted, lifespan)
	if s.started {
		return nil
	}
	s.started = true
	return s.sourceScheduler.StartLifespan(sched.TaskWide(), sched.NotPartitioned)
}

// Schedule delegates to the wrapped scheduler
func (s *AsGroupedSourceScheduler) Schedule() (*sched.ScheduleResult, error) {
	return s.sourceScheduler.Schedule()
}

// DrainCompletedLifespans returns nothing until the wrapped task-wide Lifespan completes.
// From then on, every Lifespan started on this adapter is reported complete.
func (s *AsGroupedSourceScheduler) DrainCompletedLifespans() ([]sched.Lifespan, error) {
	if !s.completed {
		lifespans, err := s.sourceScheduler.DrainCompletedLifespans()
		if err != nil {
			return nil, err
		}
		if len(lifespans) == 0 {
			return nil, nil
		}
		if len(lifespans) != 1 || !lifespans[0].IsTaskWide() {
			return nil, errors.IllegalStatef("ungrouped scheduler for plan node %s completed %v, expected only %s", s.PlanNodeID(), lifespans, sched.TaskWide())
		}
		s.completed = true
	}
	result := s.pendingCompleted
	s.pendingCompleted = nil
	return result, nil
}

// Close delegates to the wrapped scheduler
func (s *AsGroupedSourceScheduler) Close() error {
	return s.sourceScheduler.Close()
}
