//go:build linux || darwin

package keepawake

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// startHelper runs a long-lived inhibitor process in its own process group.
// Releasing terminates the whole group so no child outlives the lock.
func startHelper(name string, args ...string) (func() error, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", name, err)
	}
	cmd := exec.Command(path, args...) // #nosec G204 -- fixed helper and arguments.
	cmd.SysProcAttr = helperProcAttr()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	return func() error {
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("stop %s: %w", name, err)
		}
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return fmt.Errorf("wait for %s: %w", name, err)
		}
		return nil
	}, nil
}
