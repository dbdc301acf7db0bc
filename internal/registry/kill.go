package registry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultGracePeriod  = 2 * time.Second
	defaultWaitTimeout  = 5 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

// Kill drives the escalating termination protocol for runID and removes the
// record from the table. It returns false only when the run id was never
// tracked. Every other outcome, including a process that survived the full
// escalation, returns true once the record is gone; the returned error
// reports kill-facility failures encountered along the way and does not
// change the outcome.
func (r *Registry) Kill(ctx context.Context, runID int64) (bool, error) {
	rec, ok := r.record(runID)
	if !ok {
		r.logger.Warn("kill requested for unknown run", "run_id", runID)
		return false, nil
	}
	pid := rec.info.PID

	r.logger.Info("stopping process", "run_id", runID, "pid", pid)

	sent := false
	rec.childMu.Lock()
	if rec.child != nil {
		if err := rec.child.Terminate(); err != nil {
			r.logger.Error("terminate via child handle failed", "run_id", runID, "error", err)
		} else {
			sent = true
		}
	} else {
		r.logger.Warn("no child handle held, falling back to os kill", "run_id", runID, "pid", pid)
	}
	rec.childMu.Unlock()

	var facilityErr error
	if !sent {
		removed, err := r.KillByPid(ctx, runID, pid)
		if err != nil {
			facilityErr = err
		}
		if removed {
			return true, nil
		}
	}

	if r.waitForExit(ctx, rec) {
		r.logger.Info("process exited", "run_id", runID)
	} else {
		r.logger.Warn("process did not exit within wait budget",
			"run_id", runID, "pid", pid, "timeout", r.waitTimeout)
		rec.clearChild()
		// One final best-effort attempt. No second wait; a process still
		// alive past this point is abandoned, not retried.
		if err := r.signaler.Signal(pid, Forceful); err != nil {
			r.logger.Error("forced kill failed", "run_id", runID, "pid", pid, "error", err)
			facilityErr = errors.Join(facilityErr, err)
		}
	}

	r.Unregister(runID)
	return true, facilityErr
}

// KillByPid terminates a process through OS-level signals alone, independent
// of any held child handle, and unregisters runID on success. "Process
// already gone" counts as success; a failure of the signal facility itself
// is surfaced and leaves the record in place.
func (r *Registry) KillByPid(ctx context.Context, runID int64, pid int) (bool, error) {
	r.logger.Info("killing process by pid", "run_id", runID, "pid", pid)
	if err := r.escalate(ctx, pid); err != nil {
		r.logger.Error("os-level kill failed", "run_id", runID, "pid", pid, "error", err)
		return false, err
	}
	r.Unregister(runID)
	return true, nil
}

// escalate performs the platform-agnostic signal sequence: graceful signal,
// grace period, liveness re-probe, then forceful signal. Platforms without a
// graceful class get a single forceful kill.
func (r *Registry) escalate(ctx context.Context, pid int) error {
	if !r.signaler.SupportsGraceful() {
		return r.signaler.Signal(pid, Forceful)
	}

	if err := r.signaler.Signal(pid, Graceful); err != nil {
		r.logger.Warn("graceful signal failed, forcing", "pid", pid, "error", err)
		return r.signaler.Signal(pid, Forceful)
	}

	if err := r.sleep(ctx, r.gracePeriod); err != nil {
		return err
	}

	if !r.signaler.Alive(pid) {
		return nil
	}
	r.logger.Warn("process survived graceful signal, forcing", "pid", pid)
	return r.signaler.Signal(pid, Forceful)
}

// waitForExit polls the record's child handle until it reports exited or the
// wait budget is exhausted. The budget is expressed in poll iterations so
// the loop terminates regardless of how sleeping behaves. Confirmed exits
// clear the handle.
func (r *Registry) waitForExit(ctx context.Context, rec *record) bool {
	polls := int(r.waitTimeout / r.pollInterval)
	if polls < 1 {
		polls = 1
	}
	for i := 0; i <= polls; i++ {
		rec.childMu.Lock()
		child := rec.child
		if child == nil {
			rec.childMu.Unlock()
			return true
		}
		if child.Exited() {
			rec.child = nil
			rec.childMu.Unlock()
			return true
		}
		rec.childMu.Unlock()

		if i == polls {
			break
		}
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return false
		}
	}
	return false
}

// KillAll terminates every tracked process and returns the run ids it
// removed. Intended for host shutdown, where the registry drains itself
// before the process table goes away.
func (r *Registry) KillAll(ctx context.Context) []int64 {
	infos := r.ListAll()
	removed := make([]int64, 0, len(infos))
	for _, info := range infos {
		ok, err := r.Kill(ctx, info.RunID)
		if err != nil {
			r.logger.Error("kill during drain failed", "run_id", info.RunID, "error", err)
		}
		if ok {
			removed = append(removed, info.RunID)
		}
	}
	return removed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
