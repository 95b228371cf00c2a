package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockedReasonCombine(t *testing.T) {
	reasons := []BlockedReason{NoBlockedReason, NoActiveDriverGroup, SplitQueuesFull, WaitingForSource, MixedSplitQueuesFullAndWaitingForSource}
	for _, a := range reasons {
		if a != NoBlockedReason {
			require.Equal(t, a, a.Combine(NoActiveDriverGroup))
			require.Equal(t, a, a.Combine(NoBlockedReason))
		}
		for _, b := range reasons {
			require.Equal(t, a.Combine(b), b.Combine(a), "%s and %s", a, b)
			for _, c := range reasons {
				require.Equal(t, a.Combine(b).Combine(c), a.Combine(b.Combine(c)), "%s, %s and %s", a, b, c)
			}
		}
	}
	require.Equal(t, MixedSplitQueuesFullAndWaitingForSource, SplitQueuesFull.Combine(WaitingForSource))
	require.Equal(t, SplitQueuesFull, NoActiveDriverGroup.Combine(SplitQueuesFull))
	require.Equal(t, WaitingForSource, WaitingForSource.Combine(WaitingForSource))
}

func TestScheduleResults(t *testing.T) {
	r := NonBlockedResult(false, nil, 3)
	require.False(t, r.IsBlocked())
	require.True(t, r.Blocked.IsDone())
	require.Equal(t, 3, r.SplitsScheduled)

	blocked := CreateSettableFuture()
	r = BlockedResult(false, nil, blocked, SplitQueuesFull, 0)
	require.True(t, r.IsBlocked())
	require.Equal(t, SplitQueuesFull, r.BlockedReason)
	require.False(t, r.Blocked.IsDone())
}
