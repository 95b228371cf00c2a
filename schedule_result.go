package sched

// BlockedReason explains why a scheduler could not make progress during a poll
type BlockedReason int

const (
	// NoBlockedReason indicates that the scheduler is not blocked
	NoBlockedReason BlockedReason = iota
	// NoActiveDriverGroup indicates that there is no driver group to schedule splits for
	NoActiveDriverGroup
	// SplitQueuesFull indicates that target tasks have no capacity for more splits
	SplitQueuesFull
	// WaitingForSource indicates that the split source has no splits ready
	WaitingForSource
	// MixedSplitQueuesFullAndWaitingForSource indicates both SplitQueuesFull and WaitingForSource
	MixedSplitQueuesFullAndWaitingForSource
)

// String returns a textual representation of this BlockedReason
func (r BlockedReason) String() string {
	switch r {
	case NoActiveDriverGroup:
		return "NO_ACTIVE_DRIVER_GROUP"
	case SplitQueuesFull:
		return "SPLIT_QUEUES_FULL"
	case WaitingForSource:
		return "WAITING_FOR_SOURCE"
	case MixedSplitQueuesFullAndWaitingForSource:
		return "MIXED_SPLIT_QUEUES_FULL_AND_WAITING_FOR_SOURCE"
	default:
		return "NOT_BLOCKED"
	}
}

// Combine joins two reasons reported by different schedulers during the same poll.
// Combine is commutative and associative, and NoActiveDriverGroup (like NoBlockedReason) is its identity.
func (r BlockedReason) Combine(other BlockedReason) BlockedReason {
	if r == NoBlockedReason || r == NoActiveDriverGroup {
		if other == NoBlockedReason {
			return r
		}
		return other
	}
	if other == NoBlockedReason || other == NoActiveDriverGroup || other == r {
		return r
	}
	return MixedSplitQueuesFullAndWaitingForSource
}

// ScheduleResult is the outcome of a single scheduling poll
type ScheduleResult struct {
	Finished        bool          // true iff the scheduler will never schedule anything again
	NewTasks        []RemoteTask  // tasks created during this poll
	SplitsScheduled int           // the number of splits assigned during this poll
	Blocked         Future        // completes when progress might be possible again
	BlockedReason   BlockedReason // NoBlockedReason iff the scheduler made progress
}

// NonBlockedResult creates a ScheduleResult for a poll which made progress (or finished)
func NonBlockedResult(finished bool, newTasks []RemoteTask, splitsScheduled int) *ScheduleResult {
	return &ScheduleResult{
		Finished:        finished,
		NewTasks:        newTasks,
		SplitsScheduled: splitsScheduled,
		Blocked:         ImmediateFuture(),
		BlockedReason:   NoBlockedReason,
	}
}

// BlockedResult creates a ScheduleResult for a poll which could not make further progress
func BlockedResult(finished bool, newTasks []RemoteTask, blocked Future, reason BlockedReason, splitsScheduled int) *ScheduleResult {
	return &ScheduleResult{
		Finished:        finished,
		NewTasks:        newTasks,
		SplitsScheduled: splitsScheduled,
		Blocked:         blocked,
		BlockedReason:   reason,
	}
}

// IsBlocked returns true iff this result carries a BlockedReason
func (r *ScheduleResult) IsBlocked() bool {
	return r.BlockedReason != NoBlockedReason
}
