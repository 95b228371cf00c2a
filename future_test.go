package sched

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettableFuture(t *testing.T) {
	f := CreateSettableFuture()
	calls := 0
	f.AddListener(func() { calls++ })
	require.False(t, f.IsDone())
	require.Equal(t, 1, f.numListeners())

	require.True(t, f.Set())
	require.False(t, f.Set())
	require.True(t, f.IsDone())
	require.Equal(t, 1, calls)
	require.Equal(t, 0, f.numListeners())
	<-f.Done()

	// listeners added after completion run immediately
	f.AddListener(func() { calls++ })
	require.Equal(t, 2, calls)
	require.True(t, ImmediateFuture().IsDone())
}

func TestWhenAnyComplete(t *testing.T) {
	a, b := CreateSettableFuture(), CreateSettableFuture()
	first := WhenAnyComplete(a, nil, b)
	require.False(t, first.IsDone())
	b.Set()
	require.True(t, first.IsDone())
	a.Set()
	require.True(t, first.IsDone())

	require.True(t, WhenAnyComplete(CreateSettableFuture(), ImmediateFuture()).IsDone())
	require.False(t, WhenAnyComplete().IsDone())
}

func TestWhenAnyCompleteChains(t *testing.T) {
	root := CreateSettableFuture()
	inner := WhenAnyComplete(root)
	outer := WhenAnyComplete(inner, CreateSettableFuture())
	root.Set()
	require.True(t, inner.IsDone())
	require.True(t, outer.IsDone())
}

func TestSplitBatchFuture(t *testing.T) {
	f := CreateSplitBatchFuture()
	require.False(t, f.IsDone())
	require.True(t, f.SetBatch(SplitBatch{Splits: []Split{{ID: "a"}}, LastBatch: true}))
	require.False(t, f.SetError(fmt.Errorf("late")))
	batch, err := f.Get()
	require.Nil(t, err)
	require.True(t, batch.LastBatch)
	require.Len(t, batch.Splits, 1)

	failed := CreateSplitBatchFuture()
	failed.SetError(fmt.Errorf("boom"))
	require.True(t, failed.IsDone())
	_, err = failed.Get()
	require.EqualError(t, err, "boom")

	require.True(t, ImmediateSplitBatch(SplitBatch{}).IsDone())
}

func TestDeferredFuture(t *testing.T) {
	builds := 0
	underlying := CreateSettableFuture()
	f := DeferredFuture(func() Future {
		builds++
		return underlying
	})
	require.Equal(t, 0, builds)
	require.False(t, f.IsDone())
	calls := 0
	f.AddListener(func() { calls++ })
	require.Equal(t, 1, builds)

	underlying.Set()
	require.True(t, f.IsDone())
	require.Equal(t, 1, calls)
	<-f.Done()
	require.Equal(t, 1, builds)

	require.True(t, DeferredFuture(func() Future { return nil }).IsDone())
}
