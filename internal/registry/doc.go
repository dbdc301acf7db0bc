// Package registry tracks long-running child processes spawned on behalf of
// agents and interactive sessions. Each tracked process owns a bounded output
// buffer and, when warden spawned it directly, a live child handle used for
// liveness probes and termination.
//
// The registry is safe for concurrent use. The process table and each
// record's child handle and output buffer are guarded by independent locks;
// no lock is ever held across a blocking operation. Termination escalates
// from an in-process kill through platform graceful and forceful signals,
// bounded by fixed timeouts, and always ends with the record removed from
// the table. A process that cannot be confirmed dead after escalation is
// abandoned rather than retried forever.
package registry
