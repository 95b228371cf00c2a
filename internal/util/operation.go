package util

import (
	"fmt"
	"io"

	"github.com/go-sif/sched"
)

// SafeClose closes c such that panics are recovered and nice error messages are constructed
func SafeClose(name string, c io.Closer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = fmt.Errorf("Close Panic (%s): %w\n%s", name, anErr, GetTrace())
			} else {
				err = fmt.Errorf("Close Panic (%s): %v\n%s", name, r, GetTrace())
			}
		} else if err != nil {
			err = fmt.Errorf("Close Error (%s): %w", name, err)
		}
	}()
	err = c.Close()
	return
}

// SafeDriverGroupListener wraps a completed-driver-groups listener such that panics and errors
// are recovered and handed to onError, rather than unwinding into the caller (usually a task callback)
func SafeDriverGroupListener(listener func([]sched.Lifespan) error, onError func(error)) func([]sched.Lifespan) {
	return func(groups []sched.Lifespan) {
		var err error
		defer func() {
			if r := recover(); r != nil {
				if anErr, ok := r.(error); ok {
					err = fmt.Errorf("Listener Panic: %w\nDriver groups: %v\n%s", anErr, groups, GetTrace())
				} else {
					err = fmt.Errorf("Listener Panic: %v\nDriver groups: %v\n%s", r, groups, GetTrace())
				}
			} else if err != nil {
				err = fmt.Errorf("Listener Error: %w\nDriver groups: %v", err, groups)
			}
			if err != nil {
				onError(err)
			}
		}()
		err = listener(groups)
	}
}
