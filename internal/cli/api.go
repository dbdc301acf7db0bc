package cli

import (
	stdcontext "context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Paintersrp/warden/internal/api"
	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/launch"
	"github.com/Paintersrp/warden/internal/mcptools"
	"github.com/Paintersrp/warden/internal/metrics"
	"github.com/Paintersrp/warden/internal/registry"
	"github.com/Paintersrp/warden/internal/shell"
)

// ControlAPI implements the daemon controller over the shared registry
// and launchers.
type ControlAPI struct {
	reg      *registry.Registry
	launcher *launch.Launcher
	docker   *launch.DockerLauncher
	cfg      *config.Config
}

// NewControlAPI constructs the controller backing the HTTP API.
func NewControlAPI(reg *registry.Registry, launcher *launch.Launcher, docker *launch.DockerLauncher, cfg *config.Config) *ControlAPI {
	if cfg == nil {
		cfg = config.Default()
	}
	return &ControlAPI{reg: reg, launcher: launcher, docker: docker, cfg: cfg}
}

// ListProcesses reports every tracked run.
func (c *ControlAPI) ListProcesses(ctx stdcontext.Context) (*api.ProcessList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos := c.reg.ListAll()
	reports := make([]api.ProcessReport, 0, len(infos))
	for _, info := range infos {
		reports = append(reports, c.buildReport(info))
	}
	return &api.ProcessList{
		GeneratedAt: time.Now().UTC(),
		Counts:      c.reg.Counts(),
		Processes:   reports,
	}, nil
}

// GetProcess reports one tracked run.
func (c *ControlAPI) GetProcess(ctx stdcontext.Context, runID int64) (*api.ProcessReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, ok := c.reg.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: run %d", api.ErrUnknownProcess, runID)
	}
	report := c.buildReport(info)
	return &report, nil
}

// Output returns captured output lines for a run. A zero lines value
// returns the full buffer.
func (c *ControlAPI) Output(ctx stdcontext.Context, runID int64, lines int) (*api.OutputReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats, ok := c.reg.BufferStats(runID)
	if !ok {
		return nil, fmt.Errorf("%w: run %d", api.ErrUnknownProcess, runID)
	}
	var raw string
	if lines > 0 {
		raw = c.reg.RecentOutput(runID, lines)
	} else {
		raw = c.reg.FullOutput(runID)
	}
	return &api.OutputReport{
		RunID: runID,
		Lines: splitLines(raw),
		Stats: buildBufferReport(stats),
	}, nil
}

// SpawnAgent launches an agent process or container under a fresh run id.
func (c *ControlAPI) SpawnAgent(ctx stdcontext.Context, req api.SpawnAgentRequest) (*api.SpawnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.AgentName == "" {
		return nil, fmt.Errorf("%w: agent_name is required", api.ErrInvalidRequest)
	}
	runID := c.reg.NextID()

	if req.Sidecar {
		image := req.Image
		if image == "" {
			image = c.cfg.Sidecar.Image
		}
		spec := launch.ContainerSpec{
			Image:   image,
			Command: req.Command,
			Env:     req.Env,
			Workdir: req.Dir,
			Ports:   req.Ports,
			Task:    req.Task,
			Model:   req.Model,
		}
		if err := c.docker.StartAgent(ctx, runID, req.AgentID, req.AgentName, spec); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrSpawnFailed, err)
		}
	} else {
		command := req.Command
		if len(command) == 0 && c.cfg.Agent.Binary != "" {
			command = []string{c.cfg.Agent.Binary}
		}
		if len(command) == 0 {
			return nil, fmt.Errorf("%w: command is required", api.ErrInvalidRequest)
		}
		model := req.Model
		if model == "" {
			model = c.cfg.Agent.Model
		}
		spec := launch.Spec{
			Command: command,
			Dir:     req.Dir,
			Env:     req.Env,
			Task:    req.Task,
			Model:   model,
		}
		if err := c.launcher.StartAgent(runID, req.AgentID, req.AgentName, spec); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrSpawnFailed, err)
		}
	}

	metrics.IncrementRegistration("agent")
	info, _ := c.reg.Get(runID)
	return &api.SpawnResult{RunID: runID, PID: info.PID}, nil
}

// SpawnSession launches a session process.
func (c *ControlAPI) SpawnSession(ctx stdcontext.Context, req api.SpawnSessionRequest) (*api.SpawnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Command) == 0 {
		return nil, fmt.Errorf("%w: command is required", api.ErrInvalidRequest)
	}
	spec := launch.Spec{
		Command: req.Command,
		Dir:     req.Dir,
		Env:     req.Env,
		Task:    req.Task,
		Model:   req.Model,
	}
	runID, sessionID, err := c.launcher.StartSession(req.SessionID, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrSpawnFailed, err)
	}
	metrics.IncrementRegistration("session")
	info, _ := c.reg.Get(runID)
	return &api.SpawnResult{RunID: runID, PID: info.PID, SessionID: sessionID}, nil
}

// Kill terminates one run and removes it from the table.
func (c *ControlAPI) Kill(ctx stdcontext.Context, runID int64) (*api.KillResult, error) {
	start := time.Now()
	removed, err := c.reg.Kill(ctx, runID)
	if !removed && err == nil {
		return nil, fmt.Errorf("%w: run %d", api.ErrUnknownProcess, runID)
	}
	result := &api.KillResult{
		RunID:       runID,
		Removed:     removed,
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		// The run is already out of the table; surface the facility
		// failure as a warning instead of failing the request.
		result.Warning = err.Error()
	}
	metrics.ObserveKill(time.Since(start))
	return result, nil
}

// KillAll terminates every tracked run.
func (c *ControlAPI) KillAll(ctx stdcontext.Context) (*api.CleanupResult, error) {
	removed := c.reg.KillAll(ctx)
	return &api.CleanupResult{Removed: removed}, nil
}

// Cleanup removes exited runs from the table.
func (c *ControlAPI) Cleanup(ctx stdcontext.Context) (*api.CleanupResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	removed := c.reg.CleanupFinished()
	metrics.AddCleanupRemoved(len(removed))
	return &api.CleanupResult{Removed: removed}, nil
}

// Exec runs a one-shot shell command on the daemon host.
func (c *ControlAPI) Exec(ctx stdcontext.Context, req api.ExecRequest) (*api.ExecResult, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("%w: command is required", api.ErrInvalidRequest)
	}
	result, err := shell.Run(ctx, req.Command, req.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrSpawnFailed, err)
	}
	return &api.ExecResult{
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
	}, nil
}

// Tools reports the inferred tool surface of configured MCP servers.
func (c *ControlAPI) Tools(ctx stdcontext.Context) (*api.ToolsReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inferred := mcptools.InferAll(c.cfg.MCP.Servers)
	tools := make([]api.Tool, 0, len(inferred))
	for _, tool := range inferred {
		tools = append(tools, api.Tool{
			Name:     tool.Name,
			Server:   tool.Server,
			Inferred: tool.Inferred,
		})
	}
	return &api.ToolsReport{Tools: tools}, nil
}

// Version reports the daemon build.
func (c *ControlAPI) Version(stdcontext.Context) (*api.VersionInfo, error) {
	info := &api.VersionInfo{
		Version:   "devel",
		GoVersion: runtime.Version(),
	}
	if build, ok := debug.ReadBuildInfo(); ok {
		if build.Main.Version != "" && build.Main.Version != "(devel)" {
			info.Version = build.Main.Version
		}
		for _, setting := range build.Settings {
			if setting.Key == "vcs.revision" {
				info.Commit = setting.Value
			}
		}
	}
	return info, nil
}

func (c *ControlAPI) buildReport(info registry.Info) api.ProcessReport {
	report := api.ProcessReport{
		RunID:     info.RunID,
		Kind:      info.Kind.Label(),
		PID:       info.PID,
		StartedAt: info.StartedAt,
		Workdir:   info.Workdir,
		Task:      info.Task,
		Model:     info.Model,
		Running:   c.reg.IsRunning(info.RunID),
	}
	switch kind := info.Kind.(type) {
	case registry.AgentRun:
		report.AgentID = kind.AgentID
		report.AgentName = kind.AgentName
	case registry.Session:
		report.SessionID = kind.SessionID
	}
	if stats, ok := c.reg.BufferStats(info.RunID); ok {
		report.Buffer = buildBufferReport(stats)
	}
	return report
}

func buildBufferReport(stats registry.BufferStats) api.BufferReport {
	return api.BufferReport{
		Lines:        stats.Lines,
		Bytes:        stats.Bytes,
		MaxLines:     stats.MaxLines,
		MaxBytes:     stats.MaxBytes,
		UsagePercent: stats.UsagePercent,
		NearCapacity: stats.UsagePercent > 80,
	}
}

func splitLines(raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.TrimSuffix(raw, "\n")
	return strings.Split(raw, "\n")
}

var _ api.Controller = (*ControlAPI)(nil)
