//go:build linux

package keepawake

import "syscall"

// The kernel kills the helper group leader if this process dies without
// releasing, so a crash or SIGKILL cannot leave the inhibitor running.
func helperProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
}
