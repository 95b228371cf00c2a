package memory

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/sched"
	"github.com/go-sif/sched/errors"
)

// partitionCursor tracks the progress of one partition of Splits
type partitionCursor struct {
	splits   []sched.Split
	next     int
	finished bool
}

type pendingBatch struct {
	future *sched.SplitBatchFuture
	batch  sched.SplitBatch
}

// SplitSource is a SplitSource over a fixed list of Splits. Requests for sched.NotPartitioned
// enumerate every Split, and requests for a sched.BucketPartitionHandle enumerate the Splits of
// that bucket. While held, requested batches only complete once the source is released.
type SplitSource struct {
	lock       sync.Mutex
	all        []sched.Split
	buckets    [][]sched.Split
	cursors    map[string]*partitionCursor
	held       bool
	pending    []pendingBatch
	failure    error
	closed     bool
	closeCount int
}

// CreateSplitSource is a factory for SplitSources. Splits without a bucket are spread over
// numBuckets by hashing their IDs. numBuckets may be 0 for a source which is never grouped.
func CreateSplitSource(splits []sched.Split, numBuckets int) *SplitSource {
	s := &SplitSource{
		all:     append([]sched.Split(nil), splits...),
		buckets: make([][]sched.Split, numBuckets),
		cursors: make(map[string]*partitionCursor),
	}
	if numBuckets > 0 {
		for _, split := range splits {
			bucket := split.Bucket
			if bucket == sched.NoBucket || bucket >= numBuckets {
				bucket = int(xxhash.Sum64String(split.ID) % uint64(numBuckets))
			}
			split.Bucket = bucket
			s.buckets[bucket] = append(s.buckets[bucket], split)
		}
	}
	return s
}

// NextBatch requests up to maxSize Splits of a partition, stamped with the given Lifespan
func (s *SplitSource) NextBatch(handle sched.PartitionHandle, lifespan sched.Lifespan, maxSize int) *sched.SplitBatchFuture {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return failedBatch(errors.SplitSourceClosedError{})
	}
	if s.failure != nil {
		return failedBatch(s.failure)
	}
	if maxSize <= 0 {
		return failedBatch(errors.Invalidf("batch size must be greater than 0, got %d", maxSize))
	}
	cursor, err := s.cursorFor(handle)
	if err != nil {
		return failedBatch(err)
	}
	if cursor.finished {
		return failedBatch(errors.NoMoreSplitsError{})
	}
	end := cursor.next + maxSize
	if end > len(cursor.splits) {
		end = len(cursor.splits)
	}
	batch := sched.SplitBatch{Splits: make([]sched.Split, 0, end-cursor.next)}
	for _, split := range cursor.splits[cursor.next:end] {
		split.Lifespan = lifespan
		batch.Splits = append(batch.Splits, split)
	}
	cursor.next = end
	if cursor.next == len(cursor.splits) {
		cursor.finished = true
		batch.LastBatch = true
	}
	if s.held {
		future := sched.CreateSplitBatchFuture()
		s.pending = append(s.pending, pendingBatch{future: future, batch: batch})
		return future
	}
	return sched.ImmediateSplitBatch(batch)
}

// IsFinished returns true iff every Split was handed out, either task-wide or bucket by bucket
func (s *SplitSource) IsFinished() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if c, ok := s.cursors[sched.NotPartitioned.ToString()]; ok && c.finished {
		return true
	}
	if len(s.buckets) == 0 {
		return false
	}
	for bucket := range s.buckets {
		c, ok := s.cursors[sched.BucketPartitionHandle{Bucket: bucket}.ToString()]
		if !ok || !c.finished {
			return false
		}
	}
	return true
}

// Close fails any pending batches. Subsequent requests fail.
func (s *SplitSource) Close() error {
	s.lock.Lock()
	s.closed = true
	s.closeCount++
	pending := s.pending
	s.pending = nil
	s.lock.Unlock()
	for _, p := range pending {
		p.future.SetError(errors.SplitSourceClosedError{})
	}
	return nil
}

// Hold makes subsequently requested batches wait until Release is called
func (s *SplitSource) Hold() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.held = true
}

// Release completes every batch requested while held
func (s *SplitSource) Release() {
	s.lock.Lock()
	s.held = false
	pending := s.pending
	s.pending = nil
	s.lock.Unlock()
	for _, p := range pending {
		p.future.SetBatch(p.batch)
	}
}

// FailWith makes every subsequent request fail with err
func (s *SplitSource) FailWith(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failure = err
}

// CloseCount returns the number of times Close was called
func (s *SplitSource) CloseCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closeCount
}

// NumSplits returns the number of Splits in this source
func (s *SplitSource) NumSplits() int {
	return len(s.all)
}

func (s *SplitSource) cursorFor(handle sched.PartitionHandle) (*partitionCursor, error) {
	key := handle.ToString()
	if c, ok := s.cursors[key]; ok {
		return c, nil
	}
	var splits []sched.Split
	switch h := handle.(type) {
	case sched.BucketPartitionHandle:
		if h.Bucket < 0 || h.Bucket >= len(s.buckets) {
			return nil, errors.Invalidf("bucket %d is out of range for a source with %d buckets", h.Bucket, len(s.buckets))
		}
		splits = s.buckets[h.Bucket]
	default:
		if handle != sched.NotPartitioned {
			return nil, fmt.Errorf("Unsupported partition handle %s", key)
		}
		splits = s.all
	}
	c := &partitionCursor{splits: splits}
	s.cursors[key] = c
	return c, nil
}

func failedBatch(err error) *sched.SplitBatchFuture {
	f := sched.CreateSplitBatchFuture()
	f.SetError(err)
	return f
}
