// Package api defines the wire types and controller surface for the
// process daemon's HTTP API.
package api

import (
	stdcontext "context"
	"errors"
	"time"
)

var (
	ErrUnknownProcess = errors.New("unknown process")
	ErrUnknownSession = errors.New("unknown session")
	ErrSpawnFailed    = errors.New("spawn failed")
	ErrInvalidRequest = errors.New("invalid request")
)

// BufferReport summarises output retention for one process.
type BufferReport struct {
	Lines        int     `json:"lines"`
	Bytes        int     `json:"bytes"`
	MaxLines     int     `json:"max_lines"`
	MaxBytes     int     `json:"max_bytes"`
	UsagePercent float64 `json:"usage_percent"`
	NearCapacity bool    `json:"near_capacity"`
}

// ProcessReport describes one tracked process.
type ProcessReport struct {
	RunID     int64        `json:"run_id"`
	Kind      string       `json:"kind"`
	AgentID   int64        `json:"agent_id,omitempty"`
	AgentName string       `json:"agent_name,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	PID       int          `json:"pid"`
	StartedAt time.Time    `json:"started_at"`
	Workdir   string       `json:"workdir"`
	Task      string       `json:"task"`
	Model     string       `json:"model"`
	Running   bool         `json:"running"`
	Buffer    BufferReport `json:"buffer"`
}

// ProcessList aggregates daemon-wide process state.
type ProcessList struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Counts      map[string]int  `json:"counts"`
	Processes   []ProcessReport `json:"processes"`
}

// OutputReport carries captured output lines for one process.
type OutputReport struct {
	RunID int64        `json:"run_id"`
	Lines []string     `json:"lines"`
	Stats BufferReport `json:"stats"`
}

// SpawnAgentRequest launches an agent process or container.
type SpawnAgentRequest struct {
	AgentID   int64             `json:"agent_id"`
	AgentName string            `json:"agent_name"`
	Command   []string          `json:"command"`
	Dir       string            `json:"dir"`
	Env       map[string]string `json:"env,omitempty"`
	Task      string            `json:"task"`
	Model     string            `json:"model"`
	Sidecar   bool              `json:"sidecar,omitempty"`
	Image     string            `json:"image,omitempty"`
	Ports     []string          `json:"ports,omitempty"`
}

// SpawnSessionRequest launches an interactive session process.
type SpawnSessionRequest struct {
	SessionID string            `json:"session_id,omitempty"`
	Command   []string          `json:"command"`
	Dir       string            `json:"dir"`
	Env       map[string]string `json:"env,omitempty"`
	Task      string            `json:"task"`
	Model     string            `json:"model"`
}

// SpawnResult reports the identity assigned to a spawned process.
type SpawnResult struct {
	RunID     int64  `json:"run_id"`
	PID       int    `json:"pid"`
	SessionID string `json:"session_id,omitempty"`
}

// KillResult captures the outcome of a termination request.
type KillResult struct {
	RunID       int64     `json:"run_id"`
	Removed     bool      `json:"removed"`
	CompletedAt time.Time `json:"completed_at"`
	Warning     string    `json:"warning,omitempty"`
}

// CleanupResult lists the runs removed by a reap pass.
type CleanupResult struct {
	Removed []int64 `json:"removed"`
}

// ExecRequest runs a one-shot shell command outside the process table.
type ExecRequest struct {
	Command string `json:"command"`
	Dir     string `json:"dir"`
}

// ExecResult carries the captured output of a one-shot command.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Tool describes one tool advertised by a configured MCP server.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Server      string `json:"server"`
	Inferred    bool   `json:"inferred"`
}

// ToolsReport lists tools grouped by server.
type ToolsReport struct {
	Tools []Tool `json:"tools"`
}

// VersionInfo identifies the running daemon build.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Controller exposes daemon operations required by control servers.
type Controller interface {
	ListProcesses(stdcontext.Context) (*ProcessList, error)
	GetProcess(stdcontext.Context, int64) (*ProcessReport, error)
	Output(stdcontext.Context, int64, int) (*OutputReport, error)
	SpawnAgent(stdcontext.Context, SpawnAgentRequest) (*SpawnResult, error)
	SpawnSession(stdcontext.Context, SpawnSessionRequest) (*SpawnResult, error)
	Kill(stdcontext.Context, int64) (*KillResult, error)
	KillAll(stdcontext.Context) (*CleanupResult, error)
	Cleanup(stdcontext.Context) (*CleanupResult, error)
	Exec(stdcontext.Context, ExecRequest) (*ExecResult, error)
	Tools(stdcontext.Context) (*ToolsReport, error)
	Version(stdcontext.Context) (*VersionInfo, error)
}
