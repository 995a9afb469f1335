//go:build !linux

package recovery

import (
	"errors"
	"runtime"
)

// overridable for testing
var (
	syncAll    = func() error { return nil }
	powerCycle = func(bool) error {
		return errors.New("power cycling is not supported on " + runtime.GOOS)
	}
)
