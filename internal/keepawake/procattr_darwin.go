//go:build darwin

package keepawake

import "syscall"

// Darwin has no parent-death signal; helpers watch this pid themselves.
func helperProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
