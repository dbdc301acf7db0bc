package registry_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Paintersrp/warden/internal/registry"
)

func TestNewBufferClampsLimits(t *testing.T) {
	cases := []struct {
		name               string
		lines, bytes       int
		wantLines, wantBytes int
	}{
		{"below minimums", 1, 1, 10, 1024},
		{"above maximums", 1 << 20, 1 << 30, 10000, 100 * 1024 * 1024},
		{"in range", 500, 64 * 1024, 500, 64 * 1024},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := registry.NewBuffer(tc.lines, tc.bytes).Stats()
			if stats.MaxLines != tc.wantLines {
				t.Fatalf("max lines = %d, want %d", stats.MaxLines, tc.wantLines)
			}
			if stats.MaxBytes != tc.wantBytes {
				t.Fatalf("max bytes = %d, want %d", stats.MaxBytes, tc.wantBytes)
			}
		})
	}
}

func TestBufferAppendNormalizesLineEndings(t *testing.T) {
	buf := registry.NewBuffer(10, 1024)
	buf.Append("no trailing newline")
	buf.Append("has one\n")
	buf.Append("")

	if got, want := buf.All(), "no trailing newline\nhas one\n"; got != want {
		t.Fatalf("All() = %q, want %q", got, want)
	}
	if buf.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (empty append must be a no-op)", buf.Len())
	}
}

func TestBufferInvariantsHoldAfterEveryAppend(t *testing.T) {
	buf := registry.NewBuffer(10, 1024)
	for i := 0; i < 500; i++ {
		buf.Append(strings.Repeat("x", 1+i%300))
		stats := buf.Stats()
		if stats.Lines > stats.MaxLines {
			t.Fatalf("append %d: lines %d exceeds cap %d", i, stats.Lines, stats.MaxLines)
		}
		if stats.Bytes > stats.MaxBytes {
			t.Fatalf("append %d: bytes %d exceeds cap %d", i, stats.Bytes, stats.MaxBytes)
		}
	}
}

func TestBufferTruncatesOversizedChunk(t *testing.T) {
	buf := registry.NewBuffer(10, 1024)
	chunk := strings.Repeat("a", 900) + strings.Repeat("b", 1200)
	buf.Append(chunk)

	want := (chunk + "\n")[len(chunk)+1-1024:]
	if got := buf.All(); got != want {
		t.Fatalf("All() kept %d bytes starting %q..., want trailing 1024 bytes of the chunk", len(got), got[:8])
	}
	if buf.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", buf.Len())
	}
	if buf.TotalBytes() != 1024 {
		t.Fatalf("TotalBytes() = %d, want 1024", buf.TotalBytes())
	}
}

func TestBufferEvictsOldestLines(t *testing.T) {
	buf := registry.NewBuffer(10, 1024*1024)
	for i := 1; i <= 11; i++ {
		buf.Append(fmt.Sprintf("line-%02d", i))
	}

	var want strings.Builder
	for i := 2; i <= 11; i++ {
		fmt.Fprintf(&want, "line-%02d\n", i)
	}
	if got := buf.All(); got != want.String() {
		t.Fatalf("All() = %q, want oldest line evicted:\n%q", got, want.String())
	}
}

func TestBufferEvictsOnByteCap(t *testing.T) {
	buf := registry.NewBuffer(10000, 1024)
	line := strings.Repeat("z", 99) // 100 bytes with the newline
	for i := 0; i < 50; i++ {
		buf.Append(line)
	}
	if got := buf.TotalBytes(); got > 1024 {
		t.Fatalf("TotalBytes() = %d, exceeds byte cap", got)
	}
	if got := buf.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10 lines of 100 bytes under a 1024-byte cap", got)
	}
}

func TestBufferRecent(t *testing.T) {
	buf := registry.NewBuffer(10, 1024)
	buf.Append("a")
	buf.Append("b")
	buf.Append("c")

	if got := buf.Recent(2); got != "b\nc\n" {
		t.Fatalf("Recent(2) = %q", got)
	}
	if got := buf.Recent(0); got != "" {
		t.Fatalf("Recent(0) = %q, want empty", got)
	}
	if got, want := buf.Recent(100), buf.All(); got != want {
		t.Fatalf("Recent(n >= len) = %q, want All() = %q", got, want)
	}
}

func TestBufferClear(t *testing.T) {
	buf := registry.NewBuffer(10, 1024)
	buf.Append("something")
	buf.Clear()

	if buf.Len() != 0 || buf.TotalBytes() != 0 || buf.All() != "" {
		t.Fatalf("Clear() left lines=%d bytes=%d all=%q", buf.Len(), buf.TotalBytes(), buf.All())
	}
}

func TestBufferUsageAndNearCapacity(t *testing.T) {
	buf := registry.NewBuffer(10, 1024*1024)
	for i := 0; i < 8; i++ {
		buf.Append("line")
	}
	if buf.NearCapacity() {
		t.Fatalf("NearCapacity() = true at %0.f%%", buf.UsagePercent())
	}
	buf.Append("line")
	if got := buf.UsagePercent(); got != 90 {
		t.Fatalf("UsagePercent() = %v, want 90", got)
	}
	if !buf.NearCapacity() {
		t.Fatal("NearCapacity() = false at 90%")
	}
}
