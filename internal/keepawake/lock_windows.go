//go:build windows

package keepawake

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

const (
	esContinuous     = 0x80000000
	esSystemRequired = 0x00000001
)

var procSetThreadExecutionState = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadExecutionState")

// setExecutionState fails only when the call returns NULL together with a
// real error code; a NULL previous state alone is normal for a fresh thread.
func setExecutionState(flags uintptr) error {
	if err := procSetThreadExecutionState.Find(); err != nil {
		return fmt.Errorf("locate SetThreadExecutionState: %w", err)
	}
	prev, _, callErr := procSetThreadExecutionState.Call(flags)
	var errno windows.Errno
	if prev == 0 && errors.As(callErr, &errno) && errno != 0 {
		return fmt.Errorf("SetThreadExecutionState(%#x): %w", flags, callErr)
	}
	return nil
}

// acquire sets and later restores the execution state from one goroutine
// locked to its OS thread, since the state belongs to that thread.
func acquire(_ context.Context) (func() error, error) {
	started := make(chan error, 1)
	release := make(chan struct{})
	released := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		// The thread is never unlocked: it exits with the goroutine, which
		// also drops any state left behind.
		if err := setExecutionState(esContinuous | esSystemRequired); err != nil {
			started <- err
			return
		}
		started <- nil
		<-release
		released <- setExecutionState(esContinuous)
	}()

	if err := <-started; err != nil {
		return nil, err
	}
	return func() error {
		close(release)
		return <-released
	}, nil
}
