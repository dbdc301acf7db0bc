package cli

import (
	stdcontext "context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Paintersrp/warden/internal/api"
	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/launch"
	"github.com/Paintersrp/warden/internal/registry"
)

type stubChild struct {
	mu     sync.Mutex
	exited bool
}

func (c *stubChild) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exited = true
	return nil
}

func (c *stubChild) Exited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exited
}

func newTestControl(t *testing.T) (*ControlAPI, *registry.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(
		registry.WithLogger(logger),
		registry.WithKillTimings(time.Millisecond, 20*time.Millisecond, time.Millisecond),
	)
	cfg := config.Default()
	cfg.MCP.Servers = []string{"github"}
	cfg.Agent.Binary = ""
	control := NewControlAPI(reg, launch.New(reg, logger), launch.NewDocker(reg, logger), cfg)
	return control, reg
}

func TestListProcessesReportsKinds(t *testing.T) {
	control, reg := newTestControl(t)
	ctx := stdcontext.Background()

	if err := reg.RegisterAgent(reg.NextID(), 7, "reviewer", 4100, "/srv/a", "review", "sonnet", &stubChild{}); err != nil {
		t.Fatalf("register agent: %v", err)
	}
	if _, err := reg.RegisterSession("sess-1", 4200, "/srv/b", "", ""); err != nil {
		t.Fatalf("register session: %v", err)
	}

	list, err := control.ListProcesses(ctx)
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(list.Processes) != 2 {
		t.Fatalf("got %d processes", len(list.Processes))
	}
	if list.Counts["agent"] != 1 || list.Counts["session"] != 1 {
		t.Fatalf("counts = %v", list.Counts)
	}

	agent := list.Processes[0]
	if agent.Kind != "agent" || agent.AgentName != "reviewer" || agent.AgentID != 7 {
		t.Fatalf("agent report = %+v", agent)
	}
	if !agent.Running {
		t.Fatal("agent with live handle reported as not running")
	}
	session := list.Processes[1]
	if session.Kind != "session" || session.SessionID != "sess-1" {
		t.Fatalf("session report = %+v", session)
	}
}

func TestGetProcessUnknown(t *testing.T) {
	control, _ := newTestControl(t)

	_, err := control.GetProcess(stdcontext.Background(), 1234567)
	if !errors.Is(err, api.ErrUnknownProcess) {
		t.Fatalf("err = %v, want ErrUnknownProcess", err)
	}
}

func TestOutputReturnsRecentLines(t *testing.T) {
	control, reg := newTestControl(t)
	runID := reg.NextID()
	if err := reg.RegisterAgent(runID, 1, "writer", 4300, "", "", "", &stubChild{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.AppendOutput(runID, "first")
	reg.AppendOutput(runID, "second")
	reg.AppendOutput(runID, "third")

	report, err := control.Output(stdcontext.Background(), runID, 2)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if len(report.Lines) != 2 || report.Lines[0] != "second" || report.Lines[1] != "third" {
		t.Fatalf("lines = %v", report.Lines)
	}
	if report.Stats.Lines != 3 {
		t.Fatalf("stats.Lines = %d", report.Stats.Lines)
	}

	full, err := control.Output(stdcontext.Background(), runID, 0)
	if err != nil {
		t.Fatalf("Output full: %v", err)
	}
	if len(full.Lines) != 3 {
		t.Fatalf("full lines = %v", full.Lines)
	}
}

func TestKillRemovesRun(t *testing.T) {
	control, reg := newTestControl(t)
	runID := reg.NextID()
	if err := reg.RegisterAgent(runID, 1, "victim", 4400, "", "", "", &stubChild{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := control.Kill(stdcontext.Background(), runID)
	if err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if !result.Removed {
		t.Fatal("Kill did not remove the run")
	}
	if _, ok := reg.Get(runID); ok {
		t.Fatal("run still tracked after kill")
	}

	if _, err := control.Kill(stdcontext.Background(), runID); !errors.Is(err, api.ErrUnknownProcess) {
		t.Fatalf("second kill err = %v, want ErrUnknownProcess", err)
	}
}

func TestCleanupRemovesExitedRuns(t *testing.T) {
	control, reg := newTestControl(t)
	exited := &stubChild{exited: true}
	runID := reg.NextID()
	if err := reg.RegisterAgent(runID, 1, "done", 4500, "", "", "", exited); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := control.Cleanup(stdcontext.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != runID {
		t.Fatalf("removed = %v", result.Removed)
	}
}

func TestSpawnAgentValidation(t *testing.T) {
	control, _ := newTestControl(t)
	ctx := stdcontext.Background()

	_, err := control.SpawnAgent(ctx, api.SpawnAgentRequest{Command: []string{"true"}})
	if !errors.Is(err, api.ErrInvalidRequest) {
		t.Fatalf("missing name err = %v", err)
	}

	_, err = control.SpawnAgent(ctx, api.SpawnAgentRequest{AgentName: "empty"})
	if !errors.Is(err, api.ErrInvalidRequest) {
		t.Fatalf("missing command err = %v", err)
	}
}

func TestToolsInfersFromConfiguredServers(t *testing.T) {
	control, _ := newTestControl(t)

	report, err := control.Tools(stdcontext.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(report.Tools) == 0 {
		t.Fatal("no tools inferred for configured server")
	}
	for _, tool := range report.Tools {
		if tool.Server != "github" || !tool.Inferred {
			t.Fatalf("unexpected tool: %+v", tool)
		}
	}
}

func TestVersionReportsGoVersion(t *testing.T) {
	control, _ := newTestControl(t)

	info, err := control.Version(stdcontext.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if info.GoVersion == "" {
		t.Fatal("GoVersion is empty")
	}
}
