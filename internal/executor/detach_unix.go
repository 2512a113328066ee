//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// detach starts the child in its own process group so a terminal interrupt
// aimed at the controller is not delivered to it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
