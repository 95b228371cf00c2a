package sched

import "fmt"

// A PartitionHandle identifies to a SplitSource which partition (bucket) of
// splits to enumerate. The handles are opaque to the scheduler.
type PartitionHandle interface {
	ToString() string // for logging
}

type notPartitionedHandle struct{}

func (notPartitionedHandle) ToString() string {
	return "NOT_PARTITIONED"
}

// NotPartitioned is the PartitionHandle meaning "no partitioning": all splits, task-wide
var NotPartitioned PartitionHandle = notPartitionedHandle{}

// BucketPartitionHandle is a PartitionHandle for a single bucket of a bucketed source
type BucketPartitionHandle struct {
	Bucket int
}

// ToString returns a string representation of this BucketPartitionHandle
func (h BucketPartitionHandle) ToString() string {
	return fmt.Sprintf("bucket:%d", h.Bucket)
}

// BucketPartitionHandles creates one BucketPartitionHandle per bucket, indexed by bucket
func BucketPartitionHandles(numBuckets int) []PartitionHandle {
	handles := make([]PartitionHandle, numBuckets)
	for i := range handles {
		handles[i] = BucketPartitionHandle{Bucket: i}
	}
	return handles
}

// IsNotPartitionedList returns true iff handles is exactly [NotPartitioned]
func IsNotPartitionedList(handles []PartitionHandle) bool {
	return len(handles) == 1 && handles[0] == NotPartitioned
}
