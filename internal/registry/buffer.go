package registry

import "strings"

const (
	minBufferLines = 10
	maxBufferLines = 10000
	minBufferBytes = 1024
	maxBufferBytes = 100 * 1024 * 1024

	// DefaultMaxLines and DefaultMaxBytes bound a process's live output when
	// no explicit limits are configured: 1000 lines or 1MiB, whichever fills
	// first.
	DefaultMaxLines = 1000
	DefaultMaxBytes = 1024 * 1024
)

// BufferStats summarises the usage of a process's output buffer.
type BufferStats struct {
	Lines        int     `json:"lines"`
	Bytes        int     `json:"bytes"`
	MaxLines     int     `json:"max_lines"`
	MaxBytes     int     `json:"max_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// Buffer is a lossy, dual-limited log of recent process output. Appends past
// either cap silently evict the oldest lines; it is a trailing window, not a
// durable log. Buffer performs no locking of its own and must be serialised
// by its owner.
type Buffer struct {
	lines    []string
	maxLines int
	maxBytes int
	curBytes int
}

// NewBuffer constructs a buffer, clamping maxLines to [10, 10000] and
// maxBytes to [1KiB, 100MB].
func NewBuffer(maxLines, maxBytes int) *Buffer {
	maxLines = clampInt(maxLines, minBufferLines, maxBufferLines)
	maxBytes = clampInt(maxBytes, minBufferBytes, maxBufferBytes)
	return &Buffer{
		lines:    make([]string, 0, maxLines),
		maxLines: maxLines,
		maxBytes: maxBytes,
	}
}

// Append records one chunk of output as a single logical line. Empty chunks
// are ignored; a chunk larger than the byte cap keeps only its trailing
// maxBytes bytes, so a single write can never break the buffer invariants.
func (b *Buffer) Append(chunk string) {
	if chunk == "" {
		return
	}
	if !strings.HasSuffix(chunk, "\n") {
		chunk += "\n"
	}
	if len(chunk) > b.maxBytes {
		chunk = chunk[len(chunk)-b.maxBytes:]
	}

	b.lines = append(b.lines, chunk)
	b.curBytes += len(chunk)

	for len(b.lines) > b.maxLines || b.curBytes > b.maxBytes {
		b.curBytes -= len(b.lines[0])
		b.lines[0] = ""
		b.lines = b.lines[1:]
	}

	// The slice-as-queue above strands evicted entries in the backing array;
	// compact once the dead prefix outgrows the live window.
	if cap(b.lines) > 2*b.maxLines {
		compacted := make([]string, len(b.lines), b.maxLines)
		copy(compacted, b.lines)
		b.lines = compacted
	}
}

// Recent returns the last n retained lines, in insertion order, concatenated.
func (b *Buffer) Recent(n int) string {
	if n > len(b.lines) {
		n = len(b.lines)
	}
	if n <= 0 {
		return ""
	}
	var sb strings.Builder
	for _, line := range b.lines[len(b.lines)-n:] {
		sb.WriteString(line)
	}
	return sb.String()
}

// All returns every retained line, in insertion order, concatenated.
func (b *Buffer) All() string {
	return b.Recent(len(b.lines))
}

// Clear discards all retained output.
func (b *Buffer) Clear() {
	b.lines = b.lines[:0]
	b.curBytes = 0
}

// Len reports the number of retained lines.
func (b *Buffer) Len() int {
	return len(b.lines)
}

// TotalBytes reports the bytes currently retained.
func (b *Buffer) TotalBytes() int {
	return b.curBytes
}

// UsagePercent reports how full the buffer is against whichever cap is
// closer to being hit.
func (b *Buffer) UsagePercent() float64 {
	linePct := float64(len(b.lines)) / float64(b.maxLines) * 100
	bytePct := float64(b.curBytes) / float64(b.maxBytes) * 100
	if linePct > bytePct {
		return linePct
	}
	return bytePct
}

// NearCapacity reports whether usage exceeds 80% of either cap.
func (b *Buffer) NearCapacity() bool {
	return b.UsagePercent() > 80
}

// Stats returns a snapshot of the buffer's usage.
func (b *Buffer) Stats() BufferStats {
	return BufferStats{
		Lines:        len(b.lines),
		Bytes:        b.curBytes,
		MaxLines:     b.maxLines,
		MaxBytes:     b.maxBytes,
		UsagePercent: b.UsagePercent(),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
