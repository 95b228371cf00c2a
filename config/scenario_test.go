package config

import (
	"context"
	"testing"
	"time"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/scheduler"
	schedtest "github.com/go-sif/sched/testing"
	"github.com/stretchr/testify/require"
)

func TestLoadYAMLScenario(t *testing.T) {
	s, err := LoadScenario("testdata/grouped.yaml")
	require.Nil(t, err)
	require.Equal(t, "warn", s.LogLevel)
	require.Equal(t, 3, s.Nodes)
	require.Equal(t, 6, s.Buckets)
	require.Len(t, s.PlanNodes, 2)
	require.True(t, s.PlanNodes[0].Grouped)
	require.Equal(t, "testdata/probe.jsonl", s.PlanNodes[1].SplitsFile)
	require.Equal(t, &sched.SchedulerOptions{SplitBatchSize: 12, MaxPendingSplitsPerTask: 4}, s.SchedulerOptions())
	require.Equal(t, &schedtest.RunOptions{ExecutorsPerNode: 2, SplitsPerStep: 3}, s.RunOptions())
}

func TestLoadTOMLScenario(t *testing.T) {
	s, err := LoadScenario("testdata/ungrouped.toml")
	require.Nil(t, err)
	require.Equal(t, 2, s.Nodes)
	require.Equal(t, 0, s.Buckets)
	require.Equal(t, "right", s.PlanNodes[1].Name)
	require.Equal(t, 5, s.PlanNodes[1].Splits)
	require.Equal(t, 4, s.Options.SplitBatchSize)
}

func TestUnknownFormat(t *testing.T) {
	_, err := ParseScenario([]byte("{}"), ".json")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown scenario format")

	_, err = LoadScenario("testdata/missing.yaml")
	require.Error(t, err)
}

func TestMalformedScenario(t *testing.T) {
	_, err := ParseScenario([]byte("nodes: [1, 2"), "yaml")
	require.Error(t, err)
	_, err = ParseScenario([]byte("nodes: 2\nunknown_key: 1\nplan_nodes: [{name: a}]"), "yml")
	require.Error(t, err)
	_, err = ParseScenario([]byte("nodes = "), "toml")
	require.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	s := &Scenario{
		Nodes:   0,
		Buckets: 0,
		PlanNodes: []PlanNode{
			{Name: "a", Grouped: true},
			{Name: "a", Splits: -1},
			{Name: "b", Splits: 3, SplitsFile: "b.jsonl"},
			{},
		},
		Options: SchedulerConf{SplitBatchSize: -1},
	}
	err := s.Validate()
	require.Error(t, err)
	for _, problem := range []string{
		"nodes must be greater than 0",
		"plan node a is grouped, but the stage has no buckets",
		"plan node a appears more than once",
		"plan node a has a negative split count",
		"plan node b sets both splits and splits_file",
		"plan node 3 has no name",
		"scheduler options must not be negative",
	} {
		require.Contains(t, err.Error(), problem)
	}
}

func TestBuildAndRunScenario(t *testing.T) {
	s, err := LoadScenario("testdata/grouped.yaml")
	require.Nil(t, err)
	stage, conf, err := s.Build()
	require.Nil(t, err)
	require.Equal(t, []sched.PlanNodeID{"build", "probe"}, conf.SchedulingOrder)
	require.True(t, conf.Strategy.IsGroupedExecution("build"))
	require.False(t, conf.Strategy.IsGroupedExecution("probe"))
	require.Equal(t, 6, conf.Partitioning.NumBuckets())

	s2, statistics, err := scheduler.CreateFixedSourcePartitionedScheduler(conf)
	require.Nil(t, err)
	defer s2.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := schedtest.LocalRunStage(ctx, s2, stage, s.RunOptions())
	require.Nil(t, err)
	require.Equal(t, 34, result.SplitsScheduled)
	require.Equal(t, 3, result.TasksCreated)
	require.Equal(t, int64(4), statistics.GetSplitsScheduled()["probe"])
	require.Len(t, stage.CompletedDriverGroups(), 6)
	require.ElementsMatch(t, []sched.PlanNodeID{"build", "probe"}, stage.CompletedPlanNodes())
}
