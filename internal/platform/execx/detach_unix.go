//go:build !windows

package execx

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own session so it survives the headless fire
// process exiting, and so killing chime never tears down a running player.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
