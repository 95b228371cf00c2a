package sched

// NoBucket marks a Split which does not belong to a particular bucket
const NoBucket = -1

// A Split is a unit of scannable input handed to exactly one task
type Split struct {
	ID       string
	Bucket   int      // the bucket this Split belongs to, or NoBucket
	Lifespan Lifespan // the Lifespan this Split was enumerated for
	Payload  []byte   // connector-specific description of the data
	Empty    bool     // true for the placeholder Split scheduled when a Lifespan produced no splits
}

// EmptySplit returns the placeholder Split scheduled for a Lifespan which produced no splits,
// so that downstream drivers are still instantiated for it
func EmptySplit(lifespan Lifespan) Split {
	bucket := NoBucket
	if !lifespan.IsTaskWide() {
		bucket = lifespan.ID()
	}
	return Split{ID: "empty-" + lifespan.String(), Bucket: bucket, Lifespan: lifespan, Empty: true}
}

// A SplitBatch is a group of Splits returned by a SplitSource
type SplitBatch struct {
	Splits    []Split
	LastBatch bool // true iff no further Splits will be produced for the requested Lifespan
}

// A SplitSource enumerates the Splits for one plan node, asynchronously.
// NextBatch may be called once per Lifespan at a time; the next call for that Lifespan
// must wait until the returned future completes.
type SplitSource interface {
	NextBatch(handle PartitionHandle, lifespan Lifespan, maxSize int) *SplitBatchFuture // request up to maxSize Splits for a partition
	IsFinished() bool                                                                   // true iff every partition has produced its last batch
	Close() error                                                                       // releases resources held by this SplitSource
}
