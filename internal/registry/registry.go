package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies what a tracked process is backing. Call sites that need
// kind-specific behaviour switch exhaustively on the concrete type rather
// than inferring the kind from which fields happen to be set.
type Kind interface {
	// Label returns the stable kind name used for filtering and metrics.
	Label() string
}

// AgentRun marks a process executing a background agent task. The run id is
// supplied by the caller that owns the agent's lifecycle.
type AgentRun struct {
	AgentID   int64
	AgentName string
}

// Label implements Kind.
func (AgentRun) Label() string { return "agent" }

// Session marks a process backing an interactive session. Run ids for
// sessions are allocated by the registry.
type Session struct {
	SessionID string
}

// Label implements Kind.
func (Session) Label() string { return "session" }

// Info is the immutable metadata recorded for a tracked process. Queries
// return copies; nothing mutates an Info after registration.
type Info struct {
	RunID     int64
	Kind      Kind
	PID       int
	StartedAt time.Time
	Workdir   string
	Task      string
	Model     string
}

// Child is the live handle to a process the host spawned itself. Sidecar
// and externally-managed processes are registered without one.
type Child interface {
	// Terminate requests that the process exit. It must not block waiting
	// for the exit to complete.
	Terminate() error

	// Exited reports whether the process has been reaped, without blocking.
	Exited() bool
}

// ErrDuplicateRun is returned when registering a run id that is already
// tracked. Records are inserted exactly once and removed only by
// termination or cleanup, never replaced in place.
var ErrDuplicateRun = fmt.Errorf("run id already registered")

// Auto-generated run ids start well above any externally supplied agent run
// id to keep the two spaces from colliding.
const idSeed = 1000000

type record struct {
	info Info

	childMu sync.Mutex
	child   Child

	bufMu sync.Mutex
	buf   *Buffer
}

func (rec *record) clearChild() {
	rec.childMu.Lock()
	rec.child = nil
	rec.childMu.Unlock()
}

// Registry is the shared table of tracked processes. Construct one at host
// startup and hand it to every component that spawns, inspects or stops
// processes; tear it down with KillAll.
type Registry struct {
	mu    sync.Mutex
	procs map[int64]*record

	nextID atomic.Int64

	signaler Signaler
	logger   *slog.Logger

	maxLines int
	maxBytes int

	gracePeriod  time.Duration
	waitTimeout  time.Duration
	pollInterval time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithSignaler overrides the platform signal dispatcher.
func WithSignaler(s Signaler) Option {
	return func(r *Registry) { r.signaler = s }
}

// WithLogger sets the logging sink. Logging is fire-and-forget and never on
// the critical path of any registry operation.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBufferLimits sets the output caps applied to every new record's
// buffer. Values are clamped by NewBuffer.
func WithBufferLimits(maxLines, maxBytes int) Option {
	return func(r *Registry) {
		r.maxLines = maxLines
		r.maxBytes = maxBytes
	}
}

// WithKillTimings overrides the termination protocol's grace period, overall
// wait budget and liveness poll interval. Zero values keep the defaults.
func WithKillTimings(grace, wait, poll time.Duration) Option {
	return func(r *Registry) {
		if grace > 0 {
			r.gracePeriod = grace
		}
		if wait > 0 {
			r.waitTimeout = wait
		}
		if poll > 0 {
			r.pollInterval = poll
		}
	}
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		procs:        make(map[int64]*record),
		signaler:     NewOSSignaler(),
		logger:       slog.Default(),
		maxLines:     DefaultMaxLines,
		maxBytes:     DefaultMaxBytes,
		gracePeriod:  defaultGracePeriod,
		waitTimeout:  defaultWaitTimeout,
		pollInterval: defaultPollInterval,
		sleep:        sleepContext,
	}
	r.nextID.Store(idSeed)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NextID allocates a fresh run id for kinds that do not carry an externally
// supplied identifier.
func (r *Registry) NextID() int64 {
	return r.nextID.Add(1) - 1
}

// Register inserts a new record for runID. The child handle may be nil for
// processes whose lifecycle is managed elsewhere; ownership of a non-nil
// handle transfers to the registry.
func (r *Registry) Register(runID int64, info Info, child Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.procs[runID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateRun, runID)
	}
	r.procs[runID] = &record{
		info:  info,
		child: child,
		buf:   NewBuffer(r.maxLines, r.maxBytes),
	}
	return nil
}

// RegisterAgent tracks a directly-spawned agent process under the
// caller-supplied run id.
func (r *Registry) RegisterAgent(runID, agentID int64, agentName string, pid int, workdir, task, model string, child Child) error {
	return r.Register(runID, Info{
		RunID:     runID,
		Kind:      AgentRun{AgentID: agentID, AgentName: agentName},
		PID:       pid,
		StartedAt: time.Now().UTC(),
		Workdir:   workdir,
		Task:      task,
		Model:     model,
	}, child)
}

// RegisterSidecarAgent tracks an agent process managed by an external
// mechanism (for example a container runtime). No child handle is held; the
// registry can terminate it only through OS-level signals.
func (r *Registry) RegisterSidecarAgent(runID, agentID int64, agentName string, pid int, workdir, task, model string) error {
	return r.RegisterAgent(runID, agentID, agentName, pid, workdir, task, model, nil)
}

// RegisterSession tracks an interactive session process and returns the run
// id the registry allocated for it.
func (r *Registry) RegisterSession(sessionID string, pid int, workdir, task, model string) (int64, error) {
	runID := r.NextID()
	err := r.Register(runID, Info{
		RunID:     runID,
		Kind:      Session{SessionID: sessionID},
		PID:       pid,
		StartedAt: time.Now().UTC(),
		Workdir:   workdir,
		Task:      task,
		Model:     model,
	}, nil)
	if err != nil {
		return 0, err
	}
	return runID, nil
}

// AttachChild hands a live child handle to a record that was registered
// without one, for callers that only learn the handle after registration.
// Unknown runs and records already holding a handle are left alone.
func (r *Registry) AttachChild(runID int64, child Child) {
	rec, ok := r.record(runID)
	if !ok {
		return
	}
	rec.childMu.Lock()
	if rec.child == nil {
		rec.child = child
	}
	rec.childMu.Unlock()
}

// Get returns the metadata for runID.
func (r *Registry) Get(runID int64) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.procs[runID]
	if !ok {
		return Info{}, false
	}
	return rec.info, true
}

// ListAll returns every tracked process, ordered by run id.
func (r *Registry) ListAll() []Info {
	return r.list(func(Kind) bool { return true })
}

// Agents returns every tracked agent-run process, ordered by run id.
func (r *Registry) Agents() []Info {
	return r.list(func(k Kind) bool {
		_, ok := k.(AgentRun)
		return ok
	})
}

// Sessions returns every tracked session process, ordered by run id.
func (r *Registry) Sessions() []Info {
	return r.list(func(k Kind) bool {
		_, ok := k.(Session)
		return ok
	})
}

func (r *Registry) list(keep func(Kind) bool) []Info {
	r.mu.Lock()
	infos := make([]Info, 0, len(r.procs))
	for _, rec := range r.procs {
		if keep(rec.info.Kind) {
			infos = append(infos, rec.info)
		}
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].RunID < infos[j].RunID })
	return infos
}

// SessionByID returns the session process registered under the given
// session identifier.
func (r *Registry) SessionByID(sessionID string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.procs {
		if s, ok := rec.info.Kind.(Session); ok && s.SessionID == sessionID {
			return rec.info, true
		}
	}
	return Info{}, false
}

// Counts reports the number of tracked processes per kind label.
func (r *Registry) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, rec := range r.procs {
		counts[rec.info.Kind.Label()]++
	}
	return counts
}

// Unregister removes runID from the table. Removing an absent id is not an
// error.
func (r *Registry) Unregister(runID int64) {
	r.mu.Lock()
	delete(r.procs, runID)
	r.mu.Unlock()
}

// record returns the shared record pointer for runID. Callers take the
// per-record locks they need; the table lock is released before any of that.
func (r *Registry) record(runID int64) (*record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.procs[runID]
	return rec, ok
}

// AppendOutput appends a chunk of live output to the process's buffer.
// Appends to unknown run ids are dropped; output can race ahead of
// registration or trail behind cleanup without that being an error.
func (r *Registry) AppendOutput(runID int64, chunk string) {
	rec, ok := r.record(runID)
	if !ok {
		return
	}
	rec.bufMu.Lock()
	rec.buf.Append(chunk)
	rec.bufMu.Unlock()
}

// RecentOutput returns the last n lines of live output for runID, or the
// empty string when the run is unknown.
func (r *Registry) RecentOutput(runID int64, n int) string {
	rec, ok := r.record(runID)
	if !ok {
		return ""
	}
	rec.bufMu.Lock()
	defer rec.bufMu.Unlock()
	return rec.buf.Recent(n)
}

// FullOutput returns all retained live output for runID, or the empty
// string when the run is unknown.
func (r *Registry) FullOutput(runID int64) string {
	rec, ok := r.record(runID)
	if !ok {
		return ""
	}
	rec.bufMu.Lock()
	defer rec.bufMu.Unlock()
	return rec.buf.All()
}

// BufferStats returns buffer usage for runID.
func (r *Registry) BufferStats(runID int64) (BufferStats, bool) {
	rec, ok := r.record(runID)
	if !ok {
		return BufferStats{}, false
	}
	rec.bufMu.Lock()
	defer rec.bufMu.Unlock()
	return rec.buf.Stats(), true
}

// IsRunning probes the child handle without blocking. A handle found exited
// is cleared in place so the OS resources behind it are not held past their
// useful life. Without a handle the registry cannot assert liveness and
// reports false; callers tracking sidecar processes must use external means.
func (r *Registry) IsRunning(runID int64) bool {
	rec, ok := r.record(runID)
	if !ok {
		return false
	}
	rec.childMu.Lock()
	defer rec.childMu.Unlock()
	if rec.child == nil {
		return false
	}
	if rec.child.Exited() {
		rec.child = nil
		return false
	}
	return true
}

// CleanupFinished removes every tracked process whose OS process is gone and
// returns the removed run ids. Records with a child handle are probed
// through it; handle-less records fall back to an OS-level liveness check so
// a live sidecar is never swept away. Probing happens outside the table
// lock.
func (r *Registry) CleanupFinished() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var finished []int64
	for _, id := range ids {
		rec, ok := r.record(id)
		if !ok {
			continue
		}
		if !r.probeAlive(rec) {
			finished = append(finished, id)
		}
	}

	r.mu.Lock()
	for _, id := range finished {
		delete(r.procs, id)
	}
	r.mu.Unlock()

	if len(finished) > 0 {
		r.logger.Info("removed finished processes", "run_ids", finished)
	}
	return finished
}

func (r *Registry) probeAlive(rec *record) bool {
	rec.childMu.Lock()
	child := rec.child
	if child != nil {
		defer rec.childMu.Unlock()
		if child.Exited() {
			rec.child = nil
			return false
		}
		return true
	}
	rec.childMu.Unlock()
	return r.signaler.Alive(rec.info.PID)
}
