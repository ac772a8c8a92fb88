//go:build unix

package remote

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the shell in its own process group and makes
// cancellation kill the whole group, so test runner children do not
// outlive a timed out job.
func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
