// Package executor ties the planner, collector, and scanner together into
// the Element-Scan Executor of spec.md §4.5 steps 4-10: ensure a snapshot
// exists, optionally delay, collect values, dispatch the scan, and publish
// the result.
package executor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/memscan/engine/internal/collector"
	"github.com/memscan/engine/internal/memio"
	"github.com/memscan/engine/internal/planner"
	"github.com/memscan/engine/internal/scanner"
	"github.com/memscan/engine/internal/settings"
	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

// ErrEmptySnapshot is returned when an element scan is requested before any
// "new scan" has populated the snapshot, per spec.md §4.5 step 4.
var ErrEmptySnapshot = errors.New("executor: snapshot is empty, run New Scan first")

// Executor runs element scans against one process's snapshot.
type Executor struct {
	Collector  *collector.Collector
	Dispatcher *scanner.Dispatcher
}

func New(reader memio.Reader, chunkBytes int, maxParallel int) *Executor {
	return &Executor{
		Collector:  collector.New(reader, chunkBytes),
		Dispatcher: scanner.New(maxParallel),
	}
}

// RunElementScan executes spec.md §4.5 steps 4-10 against snap using plan,
// honoring s's repeat-scan delay and read-mode ordering.
func (e *Executor) RunElementScan(ctx context.Context, snap *snapshot.Snapshot, plan *planner.ElementScanPlan, s settings.ScanSettings, task *taskregistry.Task) error {
	if snap.IsEmpty() {
		return ErrEmptySnapshot
	}

	if s.RepeatScanDelayMs > 0 {
		select {
		case <-time.After(time.Duration(s.RepeatScanDelayMs) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.MemoryReadMode == settings.ReadBeforeScan {
		if err := e.Collector.Collect(ctx, snap, task, s.PauseWhileScanning); err != nil {
			return errors.Wrap(err, "executor: value collection failed")
		}
	}

	return e.Dispatcher.Run(ctx, snap, plan, task)
}
