package util

import (
	"fmt"
	"testing"

	"github.com/go-sif/sched"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func TestSafeClose(t *testing.T) {
	require.NoError(t, SafeClose("ok", closerFunc(func() error { return nil })))

	err := SafeClose("failing", closerFunc(func() error { return fmt.Errorf("boom") }))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Close Error (failing)")

	err = SafeClose("panicking", closerFunc(func() error { panic("oh no") }))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Close Panic (panicking): oh no")
}

func TestSafeDriverGroupListener(t *testing.T) {
	var errs []error
	onError := func(err error) { errs = append(errs, err) }

	var received []sched.Lifespan
	SafeDriverGroupListener(func(groups []sched.Lifespan) error {
		received = append(received, groups...)
		return nil
	}, onError)([]sched.Lifespan{sched.DriverGroup(1)})
	require.Equal(t, []sched.Lifespan{sched.DriverGroup(1)}, received)
	require.Empty(t, errs)

	SafeDriverGroupListener(func(groups []sched.Lifespan) error {
		return fmt.Errorf("rejected")
	}, onError)([]sched.Lifespan{sched.DriverGroup(2)})
	SafeDriverGroupListener(func(groups []sched.Lifespan) error {
		panic(fmt.Errorf("exploded"))
	}, onError)(nil)
	require.Len(t, errs, 2)
	require.Contains(t, errs[0].Error(), "Listener Error: rejected")
	require.Contains(t, errs[1].Error(), "Listener Panic: exploded")
}

func TestFormatMultiError(t *testing.T) {
	var merr *multierror.Error
	merr = multierror.Append(merr, fmt.Errorf("first"), fmt.Errorf("second"))
	merr.ErrorFormat = FormatMultiError
	require.Equal(t, "first\nsecond\n", merr.Error())
}
