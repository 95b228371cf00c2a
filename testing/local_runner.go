package testing

import (
	"context"
	"sync"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// RunOptions configures LocalRunStage
type RunOptions struct {
	ExecutorsPerNode int // the number of tasks on a Node which may process Splits at once (default 1)
	SplitsPerStep    int // the number of Splits an executor processes before yielding (default 1)
}

// RunResult summarizes a local run
type RunResult struct {
	Polls           int
	BlockedPolls    map[sched.BlockedReason]int
	SplitsScheduled int
	TasksCreated    int
}

// LocalRunStage polls a StageScheduler until it finishes, while executors process the Splits
// queued on the tasks of a MemoryStage. It returns once scheduling finished and every task
// processed all of its Splits, or once ctx is done.
func LocalRunStage(ctx context.Context, scheduler sched.StageScheduler, stage *MemoryStage, opts *RunOptions) (result *RunResult, err error) {
	// handle panics
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = anErr
			} else {
				panic(r)
			}
		}
	}()
	if opts == nil {
		opts = &RunOptions{}
	}
	executorsPerNode := opts.ExecutorsPerNode
	if executorsPerNode <= 0 {
		executorsPerNode = 1
	}
	splitsPerStep := opts.SplitsPerStep
	if splitsPerStep <= 0 {
		splitsPerStep = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	var slotsLock sync.Mutex
	slots := make(map[sched.Node]*semaphore.Weighted)
	startExecutor := func(task *MemoryTask) {
		slotsLock.Lock()
		slot, ok := slots[task.Node()]
		if !ok {
			slot = semaphore.NewWeighted(int64(executorsPerNode))
			slots[task.Node()] = slot
		}
		slotsLock.Unlock()
		g.Go(func() error {
			return runExecutor(gctx, task, slot, splitsPerStep)
		})
	}
	for _, task := range stage.Tasks() {
		startExecutor(task)
	}
	stage.onNewTask(startExecutor)
	defer stage.onNewTask(nil)

	result = &RunResult{BlockedPolls: make(map[sched.BlockedReason]int)}
	g.Go(func() error {
		for {
			res, err := scheduler.Schedule()
			if err != nil {
				return err
			}
			result.Polls++
			result.SplitsScheduled += res.SplitsScheduled
			result.TasksCreated += len(res.NewTasks)
			if res.IsBlocked() {
				result.BlockedPolls[res.BlockedReason]++
			}
			if res.Finished {
				logging.Logger.Debug().Int("polls", result.Polls).Int("splits", result.SplitsScheduled).Msg("Finished scheduling stage")
				return nil
			}
			select {
			case <-res.Blocked.Done():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// runExecutor processes the Splits of a task until the task is finished
func runExecutor(ctx context.Context, task *MemoryTask, slot *semaphore.Weighted, splitsPerStep int) error {
	for {
		if err := slot.Acquire(ctx, 1); err != nil {
			return err
		}
		processed := task.ProcessSplits(splitsPerStep)
		slot.Release(1)
		if processed > 0 {
			continue
		}
		if task.IsFinished() {
			return nil
		}
		select {
		case <-task.Work():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
