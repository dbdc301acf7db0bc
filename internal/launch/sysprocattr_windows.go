//go:build windows

package launch

import (
	"os"
	"os/exec"
	"strconv"
)

func configureSysProcAttr(cmd *exec.Cmd) {
	// Windows has no process groups to configure here; tree termination is
	// delegated to taskkill.
}

func terminateTree(p *os.Process) error {
	kill := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(p.Pid))
	if err := kill.Run(); err != nil {
		return p.Kill()
	}
	return nil
}
