//go:build !windows

package registry

import (
	"errors"
	"fmt"
	"syscall"
)

type osSignaler struct{}

// NewOSSignaler returns the signal dispatcher for the current platform.
func NewOSSignaler() Signaler {
	return osSignaler{}
}

func (osSignaler) SupportsGraceful() bool { return true }

func (osSignaler) Signal(pid int, class Class) error {
	sig := syscall.SIGTERM
	if class == Forceful {
		sig = syscall.SIGKILL
	}
	if err := syscall.Kill(pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal pid %d (%s): %w", pid, class, err)
	}
	return nil
}

func (osSignaler) Alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	// EPERM means the process exists but belongs to someone else.
	return err == nil || errors.Is(err, syscall.EPERM)
}
