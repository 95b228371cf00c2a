package scheduler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-sif/sched"
	"github.com/stretchr/testify/require"
)

func testNode(i int) sched.Node {
	return sched.Node{ID: fmt.Sprintf("node-%d", i), Host: "127.0.0.1", Port: 8081 + i}
}

// createPartitioning assigns partition i to node i, and bucket b to partition b % numNodes
func createPartitioning(t *testing.T, numNodes int, numBuckets int) *sched.NodePartitionMap {
	partitionToNode := make(map[int]sched.Node, numNodes)
	for i := 0; i < numNodes; i++ {
		partitionToNode[i] = testNode(i)
	}
	bucketToPartition := make([]int, numBuckets)
	for b := range bucketToPartition {
		bucketToPartition[b] = b % numNodes
	}
	partitioning, err := sched.CreateNodePartitionMap(partitionToNode, bucketToPartition, nil)
	require.Nil(t, err)
	return partitioning
}

func createSplits(planNode sched.PlanNodeID, n int, numBuckets int) []sched.Split {
	splits := make([]sched.Split, n)
	for i := range splits {
		bucket := sched.NoBucket
		if numBuckets > 0 {
			bucket = i % numBuckets
		}
		splits[i] = sched.Split{ID: fmt.Sprintf("%s-%d", planNode, i), Bucket: bucket}
	}
	return splits
}

type startedLifespan struct {
	lifespan sched.Lifespan
	handle   sched.PartitionHandle
}

// fakeSourceScheduler replays canned results, and records the calls it receives
type fakeSourceScheduler struct {
	lock        sync.Mutex
	planNode    sched.PlanNodeID
	started     []startedLifespan
	onStart     func(lifespan sched.Lifespan)
	startErr    error
	results     []*sched.ScheduleResult
	scheduleErr error
	drains      [][]sched.Lifespan
	numCloses   int
	closeErr    error
	closePanic  interface{}
}

func newFakeSourceScheduler(planNode sched.PlanNodeID) *fakeSourceScheduler {
	return &fakeSourceScheduler{planNode: planNode}
}

func (f *fakeSourceScheduler) PlanNodeID() sched.PlanNodeID {
	return f.planNode
}

func (f *fakeSourceScheduler) StartLifespan(lifespan sched.Lifespan, handle sched.PartitionHandle) error {
	f.lock.Lock()
	if f.startErr != nil {
		f.lock.Unlock()
		return f.startErr
	}
	f.started = append(f.started, startedLifespan{lifespan: lifespan, handle: handle})
	onStart := f.onStart
	f.lock.Unlock()
	if onStart != nil {
		onStart(lifespan)
	}
	return nil
}

func (f *fakeSourceScheduler) Schedule() (*sched.ScheduleResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	if len(f.results) == 0 {
		return sched.BlockedResult(false, nil, sched.CreateSettableFuture(), sched.WaitingForSource, 0), nil
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result, nil
}

func (f *fakeSourceScheduler) DrainCompletedLifespans() ([]sched.Lifespan, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.drains) == 0 {
		return nil, nil
	}
	result := f.drains[0]
	f.drains = f.drains[1:]
	return result, nil
}

func (f *fakeSourceScheduler) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.numCloses++
	if f.closePanic != nil {
		panic(f.closePanic)
	}
	return f.closeErr
}

func (f *fakeSourceScheduler) startedLifespans() []sched.Lifespan {
	f.lock.Lock()
	defer f.lock.Unlock()
	result := make([]sched.Lifespan, len(f.started))
	for i, s := range f.started {
		result[i] = s.lifespan
	}
	return result
}

func (f *fakeSourceScheduler) closes() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.numCloses
}
