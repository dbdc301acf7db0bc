//go:build windows

package registry

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type osSignaler struct{}

// NewOSSignaler returns the signal dispatcher for the current platform.
func NewOSSignaler() Signaler {
	return osSignaler{}
}

// Windows has no graceful signal class warden can rely on; every kill is a
// single forceful taskkill against the process tree.
func (osSignaler) SupportsGraceful() bool { return false }

func (osSignaler) Signal(pid int, class Class) error {
	out, err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if strings.Contains(msg, "not found") {
			// Process already gone.
			return nil
		}
		return fmt.Errorf("taskkill pid %d: %v: %s", pid, err, msg)
	}
	return nil
}

func (osSignaler) Alive(pid int) bool {
	filter := fmt.Sprintf("PID eq %d", pid)
	out, err := exec.Command("tasklist", "/FI", filter, "/NH").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), strconv.Itoa(pid))
}
