// Package config loads simulation scenarios for fixed-partitioned stages from YAML or TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-sif/sched"
	"github.com/go-sif/sched/datasource/memory"
	"github.com/go-sif/sched/datasource/parser/jsonl"
	"github.com/go-sif/sched/internal/util"
	"github.com/go-sif/sched/scheduler"
	schedtest "github.com/go-sif/sched/testing"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Scenario describes a stage to simulate
type Scenario struct {
	LogLevel  string        `json:"log_level" toml:"log_level" yaml:"log_level"`
	Nodes     int           `json:"nodes" toml:"nodes" yaml:"nodes"`       // the number of Nodes, one partition each
	Buckets   int           `json:"buckets" toml:"buckets" yaml:"buckets"` // the number of buckets, 0 for an unbucketed stage
	PlanNodes []PlanNode    `json:"plan_nodes" toml:"plan_nodes" yaml:"plan_nodes"`
	Options   SchedulerConf `json:"options" toml:"options" yaml:"options"`
	Run       RunConf       `json:"run" toml:"run" yaml:"run"`
}

// PlanNode describes a scan plan node, in scheduling order. Splits are either generated or read
// from a JSONL file.
type PlanNode struct {
	Name       string `json:"name" toml:"name" yaml:"name"`
	Grouped    bool   `json:"grouped" toml:"grouped" yaml:"grouped"`
	Splits     int    `json:"splits" toml:"splits" yaml:"splits"`
	SplitsFile string `json:"splits_file" toml:"splits_file" yaml:"splits_file"`
}

// SchedulerConf mirrors sched.SchedulerOptions
type SchedulerConf struct {
	SplitBatchSize          int `json:"split_batch_size" toml:"split_batch_size" yaml:"split_batch_size"`
	ConcurrentLifespans     int `json:"concurrent_lifespans" toml:"concurrent_lifespans" yaml:"concurrent_lifespans"`
	MaxSplitsPerNode        int `json:"max_splits_per_node" toml:"max_splits_per_node" yaml:"max_splits_per_node"`
	MaxPendingSplitsPerTask int `json:"max_pending_splits_per_task" toml:"max_pending_splits_per_task" yaml:"max_pending_splits_per_task"`
}

// RunConf mirrors testing.RunOptions
type RunConf struct {
	ExecutorsPerNode int `json:"executors_per_node" toml:"executors_per_node" yaml:"executors_per_node"`
	SplitsPerStep    int `json:"splits_per_step" toml:"splits_per_step" yaml:"splits_per_step"`
}

// LoadScenario reads a Scenario from a .yaml, .yml or .toml file, and validates it.
// Relative splits_file paths are resolved against the directory of the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read scenario %s", path)
	}
	s, err := ParseScenario(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load scenario %s", path)
	}
	dir := filepath.Dir(path)
	for i := range s.PlanNodes {
		if f := s.PlanNodes[i].SplitsFile; f != "" && !filepath.IsAbs(f) {
			s.PlanNodes[i].SplitsFile = filepath.Join(dir, f)
		}
	}
	return s, nil
}

// ParseScenario decodes a Scenario in the format named by ext, and validates it
func ParseScenario(data []byte, ext string) (*Scenario, error) {
	s := &Scenario{}
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		if _, err := toml.Decode(string(data), s); err != nil {
			return nil, errors.Wrap(err, "invalid TOML")
		}
	case "yaml", "yml":
		if err := yaml.UnmarshalStrict(data, s); err != nil {
			return nil, errors.Wrap(err, "invalid YAML")
		}
	default:
		return nil, fmt.Errorf("unknown scenario format %q. Use .toml or .yaml", ext)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports every problem with a Scenario at once
func (s *Scenario) Validate() error {
	var result *multierror.Error
	if s.Nodes <= 0 {
		result = multierror.Append(result, fmt.Errorf("nodes must be greater than 0, got %d", s.Nodes))
	}
	if s.Buckets < 0 {
		result = multierror.Append(result, fmt.Errorf("buckets must not be negative, got %d", s.Buckets))
	}
	if len(s.PlanNodes) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one plan node is required"))
	}
	seen := make(map[string]bool, len(s.PlanNodes))
	for i, p := range s.PlanNodes {
		if p.Name == "" {
			result = multierror.Append(result, fmt.Errorf("plan node %d has no name", i))
		} else if seen[p.Name] {
			result = multierror.Append(result, fmt.Errorf("plan node %s appears more than once", p.Name))
		}
		seen[p.Name] = true
		if p.Splits < 0 {
			result = multierror.Append(result, fmt.Errorf("plan node %s has a negative split count", p.Name))
		}
		if p.Splits > 0 && p.SplitsFile != "" {
			result = multierror.Append(result, fmt.Errorf("plan node %s sets both splits and splits_file", p.Name))
		}
		if p.Grouped && s.Buckets == 0 {
			result = multierror.Append(result, fmt.Errorf("plan node %s is grouped, but the stage has no buckets", p.Name))
		}
	}
	if o := s.Options; o.SplitBatchSize < 0 || o.ConcurrentLifespans < 0 || o.MaxSplitsPerNode < 0 || o.MaxPendingSplitsPerTask < 0 {
		result = multierror.Append(result, fmt.Errorf("scheduler options must not be negative"))
	}
	if result != nil {
		result.ErrorFormat = util.FormatMultiError
	}
	return result.ErrorOrNil()
}

// SchedulerOptions converts the options of a Scenario
func (s *Scenario) SchedulerOptions() *sched.SchedulerOptions {
	return &sched.SchedulerOptions{
		SplitBatchSize:          s.Options.SplitBatchSize,
		ConcurrentLifespans:     s.Options.ConcurrentLifespans,
		MaxSplitsPerNode:        s.Options.MaxSplitsPerNode,
		MaxPendingSplitsPerTask: s.Options.MaxPendingSplitsPerTask,
	}
}

// RunOptions converts the run options of a Scenario
func (s *Scenario) RunOptions() *schedtest.RunOptions {
	return &schedtest.RunOptions{
		ExecutorsPerNode: s.Run.ExecutorsPerNode,
		SplitsPerStep:    s.Run.SplitsPerStep,
	}
}

// Partitioning places partition i on node i, and bucket b on partition b % Nodes
func (s *Scenario) Partitioning() (*sched.NodePartitionMap, error) {
	partitionToNode := make(map[int]sched.Node, s.Nodes)
	for i := 0; i < s.Nodes; i++ {
		partitionToNode[i] = sched.Node{ID: fmt.Sprintf("node-%d", i), Host: "127.0.0.1", Port: 1643 + i}
	}
	bucketToPartition := make([]int, s.Buckets)
	for b := range bucketToPartition {
		bucketToPartition[b] = b % s.Nodes
	}
	return sched.CreateNodePartitionMap(partitionToNode, bucketToPartition, nil)
}

// Build creates the in-memory stage, split sources and scheduler Config of a Scenario
func (s *Scenario) Build() (*schedtest.MemoryStage, *scheduler.Config, error) {
	partitioning, err := s.Partitioning()
	if err != nil {
		return nil, nil, err
	}
	var planNodes, grouped []sched.PlanNodeID
	sources := make(map[sched.PlanNodeID]sched.SplitSource, len(s.PlanNodes))
	for _, p := range s.PlanNodes {
		id := sched.PlanNodeID(p.Name)
		planNodes = append(planNodes, id)
		if p.Grouped {
			grouped = append(grouped, id)
		}
		source, err := s.splitSource(p)
		if err != nil {
			return nil, nil, err
		}
		sources[id] = source
	}
	strategy := sched.UngroupedExecution()
	if len(grouped) > 0 {
		strategy = sched.GroupedExecution(grouped...)
	}
	stage := schedtest.CreateMemoryStage(&schedtest.MemoryStageConf{PlanNodes: planNodes, GroupedPlanNodes: grouped})
	return stage, &scheduler.Config{
		Stage:           stage,
		SplitSources:    sources,
		SchedulingOrder: planNodes,
		Partitioning:    partitioning,
		Strategy:        strategy,
		Options:         s.SchedulerOptions(),
	}, nil
}

func (s *Scenario) splitSource(p PlanNode) (*memory.SplitSource, error) {
	if p.SplitsFile != "" {
		source, err := jsonl.CreateSplitSourceFromFile(p.SplitsFile, s.Buckets, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to load splits of plan node %s", p.Name)
		}
		return source, nil
	}
	splits := make([]sched.Split, p.Splits)
	for i := range splits {
		bucket := sched.NoBucket
		if s.Buckets > 0 {
			bucket = i % s.Buckets
		}
		splits[i] = sched.Split{ID: fmt.Sprintf("%s-%d", p.Name, i), Bucket: bucket}
	}
	return memory.CreateSplitSource(splits, s.Buckets), nil
}
