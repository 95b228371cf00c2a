package sched

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/sched/errors"
)

// SplitToBucketFunc maps a Split to the bucket it belongs to
type SplitToBucketFunc func(split Split) int

// NodePartitionMap is the fixed assignment of partitions to Nodes, and of buckets
// to partitions, computed before scheduling begins. It is never mutated after
// construction, and may be shared without locking.
type NodePartitionMap struct {
	partitionToNode   map[int]Node
	partitions        []int
	bucketToPartition []int
	splitToBucket     SplitToBucketFunc
}

// CreateNodePartitionMap validates and builds a NodePartitionMap. splitToBucket may be nil,
// in which case HashSplitToBucket is used.
func CreateNodePartitionMap(partitionToNode map[int]Node, bucketToPartition []int, splitToBucket SplitToBucketFunc) (*NodePartitionMap, error) {
	if len(partitionToNode) == 0 {
		return nil, errors.Invalidf("partition map must contain at least one partition")
	}
	partitions := make([]int, 0, len(partitionToNode))
	p2n := make(map[int]Node, len(partitionToNode))
	for partition, node := range partitionToNode {
		if partition < 0 {
			return nil, errors.Invalidf("partition %d is negative", partition)
		}
		partitions = append(partitions, partition)
		p2n[partition] = node
	}
	sort.Ints(partitions)
	b2p := make([]int, len(bucketToPartition))
	for bucket, partition := range bucketToPartition {
		if _, ok := p2n[partition]; !ok {
			return nil, errors.Invalidf("bucket %d maps to unknown partition %d", bucket, partition)
		}
		b2p[bucket] = partition
	}
	m := &NodePartitionMap{
		partitionToNode:   p2n,
		partitions:        partitions,
		bucketToPartition: b2p,
		splitToBucket:     splitToBucket,
	}
	if m.splitToBucket == nil {
		m.splitToBucket = m.HashSplitToBucket
	}
	return m, nil
}

// PartitionToNode returns a copy of the partition -> Node mapping
func (m *NodePartitionMap) PartitionToNode() map[int]Node {
	result := make(map[int]Node, len(m.partitionToNode))
	for p, n := range m.partitionToNode {
		result[p] = n
	}
	return result
}

// BucketToPartition returns a copy of the bucket -> partition mapping, indexed by bucket
func (m *NodePartitionMap) BucketToPartition() []int {
	result := make([]int, len(m.bucketToPartition))
	copy(result, m.bucketToPartition)
	return result
}

// Partitions returns all partition ids, in ascending order
func (m *NodePartitionMap) Partitions() []int {
	result := make([]int, len(m.partitions))
	copy(result, m.partitions)
	return result
}

// NumPartitions returns the number of partitions
func (m *NodePartitionMap) NumPartitions() int {
	return len(m.partitions)
}

// NumBuckets returns the number of buckets
func (m *NodePartitionMap) NumBuckets() int {
	return len(m.bucketToPartition)
}

// NodeForPartition returns the Node a partition is assigned to
func (m *NodePartitionMap) NodeForPartition(partition int) (Node, bool) {
	n, ok := m.partitionToNode[partition]
	return n, ok
}

// NodeForBucket resolves bucket -> partition -> Node
func (m *NodePartitionMap) NodeForBucket(bucket int) Node {
	return m.partitionToNode[m.bucketToPartition[bucket]]
}

// PartitionForSplit resolves the partition a Split belongs to
func (m *NodePartitionMap) PartitionForSplit(split Split) int {
	if len(m.bucketToPartition) == 0 {
		// no buckets, so spread splits over partitions directly
		return m.partitions[hashSplit(split)%uint64(len(m.partitions))]
	}
	return m.bucketToPartition[m.splitToBucket(split)]
}

// NodeForSplit resolves the Node a Split must run on
func (m *NodePartitionMap) NodeForSplit(split Split) Node {
	return m.partitionToNode[m.PartitionForSplit(split)]
}

// HashSplitToBucket uses a Split's explicit bucket if it is in range, and hashes its ID otherwise
func (m *NodePartitionMap) HashSplitToBucket(split Split) int {
	if split.Bucket >= 0 && split.Bucket < len(m.bucketToPartition) {
		return split.Bucket
	}
	return int(hashSplit(split) % uint64(len(m.bucketToPartition)))
}

func hashSplit(split Split) uint64 {
	return xxhash.Sum64String(split.ID)
}
