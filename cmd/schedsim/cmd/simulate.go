package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/config"
	"github.com/go-sif/sched/logging"
	"github.com/go-sif/sched/scheduler"
	schedtest "github.com/go-sif/sched/testing"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	scenarioPath string
	timeout      time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Runs a scenario to completion and prints its statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return simulate(ctx, scenarioPath, logLevel == "", cmd.OutOrStdout())
	},
}

func init() {
	simulateCmd.Flags().StringVarP(&scenarioPath, "config", "c", "", "path to a .yaml or .toml scenario")
	simulateCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "abort the simulation after this long (0 disables)")
	_ = simulateCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(simulateCmd)
}

// simulate loads a scenario, runs it in memory and renders its statistics to w
func simulate(ctx context.Context, path string, useScenarioLevel bool, w io.Writer) error {
	scenario, err := config.LoadScenario(path)
	if err != nil {
		return err
	}
	if useScenarioLevel && scenario.LogLevel != "" {
		applyLogLevel(scenario.LogLevel)
	}
	stage, conf, err := scenario.Build()
	if err != nil {
		return err
	}
	s, statistics, err := scheduler.CreateFixedSourcePartitionedScheduler(conf)
	if err != nil {
		return err
	}
	defer s.Close()

	logging.Logger.Info().Str("scenario", path).Int("nodes", scenario.Nodes).Int("buckets", scenario.Buckets).Msg("Starting simulation")
	result, err := schedtest.LocalRunStage(ctx, s, stage, scenario.RunOptions())
	if err != nil {
		return fmt.Errorf("simulation of %s failed: %w", path, err)
	}
	logging.Logger.Info().Int("polls", result.Polls).Dur("runtime", statistics.GetRuntime()).Msg("Finished simulation")
	renderStatistics(w, conf.SchedulingOrder, stage, statistics)
	return nil
}

func renderStatistics(w io.Writer, planNodes []sched.PlanNodeID, stage *schedtest.MemoryStage, statistics sched.SchedulingStatistics) {
	splits := statistics.GetSplitsScheduled()
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Plan Node", "Splits Scheduled", "Splits Processed"})
	table.SetAutoFormatHeaders(false)
	for _, planNode := range planNodes {
		table.Append([]string{
			string(planNode),
			strconv.FormatInt(splits[planNode], 10),
			strconv.Itoa(len(stage.ProcessedSplits(planNode))),
		})
	}
	table.Render()

	blocked := statistics.GetNumBlockedPolls()
	reasons := make([]sched.BlockedReason, 0, len(blocked))
	for reason := range blocked {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Statistic", "Value"})
	summary.SetAutoFormatHeaders(false)
	summary.Append([]string{"Polls", strconv.FormatInt(statistics.GetNumPolls(), 10)})
	for _, reason := range reasons {
		summary.Append([]string{"Blocked on " + reason.String(), strconv.FormatInt(blocked[reason], 10)})
	}
	summary.Append([]string{"Tasks Created", strconv.FormatInt(statistics.GetNumTasksCreated(), 10)})
	summary.Append([]string{"Driver Groups Started", strconv.FormatInt(statistics.GetNumLifespansStarted(), 10)})
	summary.Append([]string{"Driver Groups Completed", strconv.FormatInt(statistics.GetNumLifespansCompleted(), 10)})
	summary.Append([]string{"Runtime", statistics.GetRuntime().String()})
	summary.Render()
}
