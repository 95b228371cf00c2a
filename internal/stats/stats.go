package stats

import (
	"sync"
	"time"

	"github.com/go-sif/sched"
)

// SchedulingStatistics contains statistics about the scheduling of a stage.
// Polling happens on a single goroutine, but driver group completions are
// recorded from task callbacks, so all access is locked.
type SchedulingStatistics struct {
	lock               sync.Mutex
	started            bool
	startTime          time.Time
	totalRuntime       time.Duration
	finished           bool
	numPolls           int64
	blockedPolls       map[sched.BlockedReason]int64
	splitsScheduled    map[sched.PlanNodeID]int64
	lifespansStarted   int64
	lifespansCompleted int64
	tasksCreated       int64
}

// CreateSchedulingStatistics creates an empty SchedulingStatistics
func CreateSchedulingStatistics() *SchedulingStatistics {
	return &SchedulingStatistics{
		blockedPolls:    make(map[sched.BlockedReason]int64),
		splitsScheduled: make(map[sched.PlanNodeID]int64),
	}
}

// Start triggers statistics tracking, if it hasn't been started already
func (ss *SchedulingStatistics) Start() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if !ss.started {
		ss.started = true
		ss.startTime = time.Now()
	}
}

// Finish completes statistics tracking
func (ss *SchedulingStatistics) Finish() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if !ss.finished {
		ss.finished = true
		ss.totalRuntime = time.Since(ss.startTime)
	}
}

// RecordPoll tracks the outcome of a single poll
func (ss *SchedulingStatistics) RecordPoll(result *sched.ScheduleResult) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.numPolls++
	ss.tasksCreated += int64(len(result.NewTasks))
	if result.IsBlocked() {
		ss.blockedPolls[result.BlockedReason]++
	}
}

// RecordSplitsScheduled tracks splits scheduled for a plan node
func (ss *SchedulingStatistics) RecordSplitsScheduled(planNode sched.PlanNodeID, numSplits int) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.splitsScheduled[planNode] += int64(numSplits)
}

// RecordLifespansStarted tracks driver groups admitted for execution
func (ss *SchedulingStatistics) RecordLifespansStarted(n int) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.lifespansStarted += int64(n)
}

// RecordLifespansCompleted tracks driver groups which finished execution
func (ss *SchedulingStatistics) RecordLifespansCompleted(n int) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.lifespansCompleted += int64(n)
}

// GetStartTime returns the time of the first poll
func (ss *SchedulingStatistics) GetStartTime() time.Time {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.startTime
}

// GetRuntime returns the time spent scheduling so far
func (ss *SchedulingStatistics) GetRuntime() time.Duration {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.finished {
		return ss.totalRuntime
	}
	if !ss.started {
		return 0
	}
	return time.Since(ss.startTime)
}

// GetNumPolls returns the number of polls so far
func (ss *SchedulingStatistics) GetNumPolls() int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.numPolls
}

// GetNumBlockedPolls returns the number of blocked polls, counted by reason
func (ss *SchedulingStatistics) GetNumBlockedPolls() map[sched.BlockedReason]int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	result := make(map[sched.BlockedReason]int64, len(ss.blockedPolls))
	for k, v := range ss.blockedPolls {
		result[k] = v
	}
	return result
}

// GetSplitsScheduled returns the number of splits scheduled so far, counted by plan node
func (ss *SchedulingStatistics) GetSplitsScheduled() map[sched.PlanNodeID]int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	result := make(map[sched.PlanNodeID]int64, len(ss.splitsScheduled))
	for k, v := range ss.splitsScheduled {
		result[k] = v
	}
	return result
}

// GetNumLifespansStarted returns the number of driver groups admitted so far
func (ss *SchedulingStatistics) GetNumLifespansStarted() int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.lifespansStarted
}

// GetNumLifespansCompleted returns the number of driver groups which finished execution so far
func (ss *SchedulingStatistics) GetNumLifespansCompleted() int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.lifespansCompleted
}

// GetNumTasksCreated returns the number of tasks created
func (ss *SchedulingStatistics) GetNumTasksCreated() int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.tasksCreated
}
