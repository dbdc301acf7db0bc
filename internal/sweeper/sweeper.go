// Package sweeper periodically removes exited processes from the
// registry so the table reflects reality between explicit cleanups.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/Paintersrp/warden/internal/metrics"
)

// Table is the slice of the registry the sweeper drives.
type Table interface {
	CleanupFinished() []int64
	Counts() map[string]int
}

// Sweeper runs cleanup passes on a fixed interval.
type Sweeper struct {
	table    Table
	interval time.Duration
	log      *slog.Logger
}

// New constructs a sweeper. A non-positive interval falls back to 30s.
func New(table Table, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{table: table, interval: interval, log: logger}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one cleanup pass and publishes gauge updates.
func (s *Sweeper) Sweep() []int64 {
	removed := s.table.CleanupFinished()
	if len(removed) > 0 {
		s.log.Info("removed exited processes", "count", len(removed), "run_ids", removed)
		metrics.AddCleanupRemoved(len(removed))
	}
	for kind, n := range s.table.Counts() {
		metrics.SetProcesses(kind, n)
	}
	return removed
}
