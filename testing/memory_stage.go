package testing

import (
	"sort"
	"sync"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
	"github.com/gofrs/uuid"
)

// MemoryStageConf configures a MemoryStage
type MemoryStageConf struct {
	PlanNodes        []sched.PlanNodeID // every scan plan node of the stage
	GroupedPlanNodes []sched.PlanNodeID // the plan nodes which use grouped execution
}

// MemoryStage is an in-memory Stage. Splits for a Node go to the first task created on it.
// A driver group completes once every grouped plan node has received, and processed, all of
// its Splits on the owning task.
type MemoryStage struct {
	lock             sync.Mutex
	planNodes        []sched.PlanNodeID
	groupedPlanNodes []sched.PlanNodeID
	tasks            []*MemoryTask
	tasksByNode      map[sched.Node][]*MemoryTask
	partitions       map[int]bool
	completedNodes   []sched.PlanNodeID
	completedGroups  []sched.Lifespan
	listeners        []func([]sched.Lifespan)
	newTaskListener  func(task *MemoryTask)
}

// CreateMemoryStage is a factory for MemoryStages
func CreateMemoryStage(conf *MemoryStageConf) *MemoryStage {
	return &MemoryStage{
		planNodes:        append([]sched.PlanNodeID(nil), conf.PlanNodes...),
		groupedPlanNodes: append([]sched.PlanNodeID(nil), conf.GroupedPlanNodes...),
		tasksByNode:      make(map[sched.Node][]*MemoryTask),
		partitions:       make(map[int]bool),
	}
}

// ScheduleTask creates a task for a partition on a Node
func (s *MemoryStage) ScheduleTask(node sched.Node, partition int, totalPartitions int) (sched.RemoteTask, error) {
	if partition < 0 || partition >= totalPartitions {
		return nil, errors.Invalidf("partition %d is out of range [0, %d)", partition, totalPartitions)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	if s.partitions[partition] {
		s.lock.Unlock()
		return nil, errors.IllegalStatef("a task already exists for partition %d", partition)
	}
	s.partitions[partition] = true
	task := newMemoryTask(id.String(), node, partition, s)
	s.tasks = append(s.tasks, task)
	s.tasksByNode[node] = append(s.tasksByNode[node], task)
	listener := s.newTaskListener
	s.lock.Unlock()
	if listener != nil {
		listener(task)
	}
	return task, nil
}

// ScheduleSplits hands Splits, and finished driver groups, to the first task on a Node
func (s *MemoryStage) ScheduleSplits(node sched.Node, planNode sched.PlanNodeID, splits []sched.Split, noMoreSplits []sched.Lifespan) error {
	s.lock.Lock()
	tasks := s.tasksByNode[node]
	s.lock.Unlock()
	if len(tasks) == 0 {
		return errors.IllegalStatef("no task is running on node %s", node)
	}
	task := tasks[0]
	task.AddSplits(planNode, splits)
	for _, lifespan := range noMoreSplits {
		task.NoMoreSplitsForLifespan(planNode, lifespan)
	}
	return nil
}

// SchedulingComplete tells every task that a plan node has no more Splits
func (s *MemoryStage) SchedulingComplete(planNode sched.PlanNodeID) {
	s.lock.Lock()
	s.completedNodes = append(s.completedNodes, planNode)
	tasks := append([]*MemoryTask(nil), s.tasks...)
	s.lock.Unlock()
	for _, task := range tasks {
		task.NoMoreSplits(planNode)
	}
}

// AddCompletedDriverGroupsChangedListener registers a listener for driver group completions
func (s *MemoryStage) AddCompletedDriverGroupsChangedListener(listener func(newlyCompleted []sched.Lifespan)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.listeners = append(s.listeners, listener)
}

// AllTasks returns the tasks created so far
func (s *MemoryStage) AllTasks() []sched.RemoteTask {
	s.lock.Lock()
	defer s.lock.Unlock()
	result := make([]sched.RemoteTask, len(s.tasks))
	for i, task := range s.tasks {
		result[i] = task
	}
	return result
}

// Tasks returns the tasks created so far, in creation order
func (s *MemoryStage) Tasks() []*MemoryTask {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]*MemoryTask(nil), s.tasks...)
}

// TaskOnNode returns the task which receives the Splits of a Node
func (s *MemoryStage) TaskOnNode(node sched.Node) *MemoryTask {
	s.lock.Lock()
	defer s.lock.Unlock()
	if tasks := s.tasksByNode[node]; len(tasks) > 0 {
		return tasks[0]
	}
	return nil
}

// ProcessAll processes every queued Split of every task, until none remain, and returns how
// many were processed
func (s *MemoryStage) ProcessAll() int {
	total := 0
	for {
		processed := 0
		for _, task := range s.Tasks() {
			processed += task.ProcessSplits(task.QueuedSplitCount())
		}
		if processed == 0 {
			return total
		}
		total += processed
	}
}

// ProcessedSplits returns the Splits of a plan node processed by any task, ordered by ID
func (s *MemoryStage) ProcessedSplits(planNode sched.PlanNodeID) []sched.Split {
	var result []sched.Split
	for _, task := range s.Tasks() {
		result = append(result, task.ProcessedSplits(planNode)...)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// CompletedPlanNodes returns the plan nodes reported complete, in order
func (s *MemoryStage) CompletedPlanNodes() []sched.PlanNodeID {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]sched.PlanNodeID(nil), s.completedNodes...)
}

// CompletedDriverGroups returns the driver groups which finished execution, in order
func (s *MemoryStage) CompletedDriverGroups() []sched.Lifespan {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]sched.Lifespan(nil), s.completedGroups...)
}

// IsFinished returns true iff every task finished
func (s *MemoryStage) IsFinished() bool {
	for _, task := range s.Tasks() {
		if !task.IsFinished() {
			return false
		}
	}
	return true
}

func (s *MemoryStage) onNewTask(listener func(task *MemoryTask)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.newTaskListener = listener
}

// driverGroupsCompleted notifies listeners, outside of any lock
func (s *MemoryStage) driverGroupsCompleted(lifespans []sched.Lifespan) {
	if len(lifespans) == 0 {
		return
	}
	s.lock.Lock()
	s.completedGroups = append(s.completedGroups, lifespans...)
	listeners := make([]func([]sched.Lifespan), len(s.listeners))
	copy(listeners, s.listeners)
	s.lock.Unlock()
	for _, listener := range listeners {
		listener(lifespans)
	}
}
