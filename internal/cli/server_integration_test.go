package cli

import (
	stdcontext "context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Paintersrp/warden/internal/api"
	apihttp "github.com/Paintersrp/warden/internal/api/http"
)

// startTestDaemon serves a ControlAPI on an ephemeral port and returns a
// client pointed at it.
func startTestDaemon(t *testing.T, control *ControlAPI) *api.Client {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server, err := newAPIServer(apihttp.Config{Controller: control, Listener: listener})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, stdcontext.Canceled) {
				t.Errorf("server shutdown: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return api.NewClient("http://" + server.Addr())
}

func TestDaemonRoundTrip(t *testing.T) {
	control, reg := newTestControl(t)
	client := startTestDaemon(t, control)
	ctx := stdcontext.Background()

	runID := reg.NextID()
	if err := reg.RegisterAgent(runID, 3, "roundtrip", 4600, "/srv/rt", "inspect", "opus", &stubChild{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.AppendOutput(runID, "hello from the daemon")

	list, err := client.ListProcesses(ctx)
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(list.Processes) != 1 || list.Processes[0].RunID != runID {
		t.Fatalf("list = %+v", list)
	}

	report, err := client.Output(ctx, runID, 0)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if len(report.Lines) != 1 || report.Lines[0] != "hello from the daemon" {
		t.Fatalf("output lines = %v", report.Lines)
	}

	result, err := client.Kill(ctx, runID)
	if err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if !result.Removed {
		t.Fatal("kill did not remove the run")
	}

	if _, err := client.GetProcess(ctx, runID); err == nil {
		t.Fatal("killed run still visible")
	} else {
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
			t.Fatalf("err = %v, want 404 APIError", err)
		}
	}

	cleanup, err := client.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(cleanup.Removed) != 0 {
		t.Fatalf("cleanup removed %v from an empty table", cleanup.Removed)
	}

	version, err := client.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version.GoVersion == "" {
		t.Fatal("empty go version from daemon")
	}
}
