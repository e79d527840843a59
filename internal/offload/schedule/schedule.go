// Package schedule provides the debounce, throttle and batch primitives used
// to rate-limit offload calls. Each instance owns at most one pending timer.
// A panicking callback is recovered and logged so the scheduler stays usable.
package schedule

import (
	"fmt"
	"runtime/debug"

	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
)

const componentSchedule = "schedule"

// GetLogger returns the scheduler logger
func GetLogger() logger.Logger {
	return logger.Global().Module("offload").Module("schedule")
}

// safeCall runs fn and converts a panic into an error
func safeCall(kind string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Errorf("%s callback panicked: %v", kind, r)).
				Component(componentSchedule).
				Category(errors.CategoryGeneric).
				Context("scheduler", kind).
				Context("stack", string(debug.Stack())).
				Build()
		}
	}()
	return fn()
}
