package memory

import (
	"fmt"
	"testing"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
	"github.com/stretchr/testify/require"
)

func createSplits(n int, numBuckets int) []sched.Split {
	splits := make([]sched.Split, n)
	for i := range splits {
		splits[i] = sched.Split{ID: fmt.Sprintf("split-%d", i), Bucket: i % numBuckets}
	}
	return splits
}

func TestNotPartitionedBatches(t *testing.T) {
	source := CreateSplitSource(createSplits(5, 1), 0)
	require.False(t, source.IsFinished())

	batch, err := source.NextBatch(sched.NotPartitioned, sched.TaskWide(), 3).Get()
	require.Nil(t, err)
	require.Len(t, batch.Splits, 3)
	require.False(t, batch.LastBatch)
	require.False(t, source.IsFinished())

	batch, err = source.NextBatch(sched.NotPartitioned, sched.TaskWide(), 3).Get()
	require.Nil(t, err)
	require.Len(t, batch.Splits, 2)
	require.True(t, batch.LastBatch)
	require.True(t, source.IsFinished())

	_, err = source.NextBatch(sched.NotPartitioned, sched.TaskWide(), 3).Get()
	require.IsType(t, errors.NoMoreSplitsError{}, err)
}

func TestBucketedBatches(t *testing.T) {
	source := CreateSplitSource(createSplits(6, 3), 3)
	for bucket := 0; bucket < 3; bucket++ {
		require.False(t, source.IsFinished())
		batch, err := source.NextBatch(sched.BucketPartitionHandle{Bucket: bucket}, sched.DriverGroup(bucket), 10).Get()
		require.Nil(t, err)
		require.True(t, batch.LastBatch)
		require.Len(t, batch.Splits, 2)
		for _, split := range batch.Splits {
			require.Equal(t, bucket, split.Bucket)
			require.Equal(t, sched.DriverGroup(bucket), split.Lifespan)
		}
	}
	require.True(t, source.IsFinished())

	_, err := source.NextBatch(sched.BucketPartitionHandle{Bucket: 7}, sched.DriverGroup(7), 10).Get()
	require.IsType(t, errors.InvalidArgumentError{}, err)
}

func TestUnbucketedSplitsAreHashed(t *testing.T) {
	splits := createSplits(20, 1)
	for i := range splits {
		splits[i].Bucket = sched.NoBucket
	}
	source := CreateSplitSource(splits, 4)
	total := 0
	for bucket := 0; bucket < 4; bucket++ {
		batch, err := source.NextBatch(sched.BucketPartitionHandle{Bucket: bucket}, sched.DriverGroup(bucket), 100).Get()
		require.Nil(t, err)
		for _, split := range batch.Splits {
			require.Equal(t, bucket, split.Bucket)
		}
		total += len(batch.Splits)
	}
	require.Equal(t, 20, total)
}

func TestEmptyBucket(t *testing.T) {
	source := CreateSplitSource(nil, 2)
	batch, err := source.NextBatch(sched.BucketPartitionHandle{Bucket: 1}, sched.DriverGroup(1), 10).Get()
	require.Nil(t, err)
	require.True(t, batch.LastBatch)
	require.Empty(t, batch.Splits)
}

func TestHoldAndRelease(t *testing.T) {
	source := CreateSplitSource(createSplits(2, 1), 0)
	source.Hold()
	future := source.NextBatch(sched.NotPartitioned, sched.TaskWide(), 10)
	require.False(t, future.IsDone())
	source.Release()
	require.True(t, future.IsDone())
	batch, err := future.Get()
	require.Nil(t, err)
	require.Len(t, batch.Splits, 2)
}

func TestCloseFailsPendingBatches(t *testing.T) {
	source := CreateSplitSource(createSplits(2, 1), 0)
	source.Hold()
	future := source.NextBatch(sched.NotPartitioned, sched.TaskWide(), 10)
	require.Nil(t, source.Close())
	require.True(t, future.IsDone())
	_, err := future.Get()
	require.IsType(t, errors.SplitSourceClosedError{}, err)
	_, err = source.NextBatch(sched.NotPartitioned, sched.TaskWide(), 10).Get()
	require.IsType(t, errors.SplitSourceClosedError{}, err)
	require.Equal(t, 1, source.CloseCount())
}

func TestFailWith(t *testing.T) {
	source := CreateSplitSource(createSplits(2, 1), 0)
	source.FailWith(fmt.Errorf("connector unavailable"))
	_, err := source.NextBatch(sched.NotPartitioned, sched.TaskWide(), 10).Get()
	require.EqualError(t, err, "connector unavailable")
}
