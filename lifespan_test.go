package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifespan(t *testing.T) {
	require.True(t, TaskWide().IsTaskWide())
	require.Equal(t, TaskWide(), TaskWide())
	require.Equal(t, "TaskWide", TaskWide().String())

	g := DriverGroup(3)
	require.False(t, g.IsTaskWide())
	require.Equal(t, 3, g.ID())
	require.Equal(t, "Group3", g.String())
	require.Equal(t, DriverGroup(3), g)
	require.NotEqual(t, DriverGroup(0), TaskWide())

	seen := map[Lifespan]bool{DriverGroup(1): true, TaskWide(): true}
	require.True(t, seen[DriverGroup(1)])
	require.False(t, seen[DriverGroup(2)])

	require.Panics(t, func() { DriverGroup(-1) })
}
