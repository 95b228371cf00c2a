package sched

// StageExecutionStrategy describes which plan nodes of a stage use grouped execution
type StageExecutionStrategy struct {
	groupedPlanNodes map[PlanNodeID]bool
}

// UngroupedExecution is the strategy for a stage in which every plan node runs task-wide
func UngroupedExecution() StageExecutionStrategy {
	return StageExecutionStrategy{groupedPlanNodes: map[PlanNodeID]bool{}}
}

// GroupedExecution is the strategy for a stage in which the given plan nodes run one driver group at a time
func GroupedExecution(planNodes ...PlanNodeID) StageExecutionStrategy {
	grouped := make(map[PlanNodeID]bool, len(planNodes))
	for _, p := range planNodes {
		grouped[p] = true
	}
	return StageExecutionStrategy{groupedPlanNodes: grouped}
}

// IsAnyScanGroupedExecution returns true iff at least one plan node uses grouped execution
func (s StageExecutionStrategy) IsAnyScanGroupedExecution() bool {
	return len(s.groupedPlanNodes) > 0
}

// IsGroupedExecution returns true iff the given plan node uses grouped execution
func (s StageExecutionStrategy) IsGroupedExecution(planNode PlanNodeID) bool {
	return s.groupedPlanNodes[planNode]
}
