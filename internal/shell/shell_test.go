package shell

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell tests use POSIX commands")
	}
}

func TestRunCapturesStdoutAndStderr(t *testing.T) {
	requireUnix(t)

	result, err := Run(context.Background(), "echo out; echo err >&2", t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "out" {
		t.Fatalf("stdout = %q", result.Stdout)
	}
	if strings.TrimSpace(result.Stderr) != "err" {
		t.Fatalf("stderr = %q", result.Stderr)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exit code = %d", result.ExitCode)
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	requireUnix(t)

	result, err := Run(context.Background(), "exit 3", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestRunUsesWorkingDirectory(t *testing.T) {
	requireUnix(t)

	dir := t.TempDir()
	result, err := Run(context.Background(), "pwd", dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Stdout, dir) {
		t.Fatalf("pwd = %q, want prefix %q", result.Stdout, dir)
	}
}

func TestRunRejectsEmptyCommand(t *testing.T) {
	if _, err := Run(context.Background(), "   ", ""); err == nil {
		t.Fatal("Run accepted an empty command")
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	requireUnix(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _ = Run(ctx, "sleep 30", "")
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Run kept going for %v after cancellation", elapsed)
	}
}
