// Package collector refreshes a Snapshot's region buffers from the target
// process in parallel, per spec.md §4.4.
package collector

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memscan/engine/internal/memio"
	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

// pauseYield is the per-unit yield spec.md §5 calls for when
// pause_while_scanning is set, to keep the UI responsive.
const pauseYield = time.Millisecond

// ChunkBytes is the read buffer size the collector uses per region,
// typically sourced from settings.ScanSettings.ScanBufferKB.
type Collector struct {
	Reader     memio.Reader
	ChunkBytes int
	// MaxParallel caps work-stealing concurrency; 0 means runtime.NumCPU().
	MaxParallel int
}

func New(reader memio.Reader, chunkBytes int) *Collector {
	return &Collector{Reader: reader, ChunkBytes: chunkBytes}
}

// Collect takes the regions out of snap, refreshes each off-lock in
// parallel (honoring task.Cancelled() and reporting progress every 32
// regions per spec.md §5), then puts the regions back under a brief write
// lock. This never holds snap's lock for the I/O itself. When
// pauseWhileScanning is set, each work unit yields 1ms before starting,
// per spec.md §5's suspension-point note.
func (c *Collector) Collect(ctx context.Context, snap *snapshot.Snapshot, task *taskregistry.Task, pauseWhileScanning bool) error {
	regions := snap.TakeRegions()
	defer func() { snap.PutRegions(regions) }()

	maxParallel := c.MaxParallel
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	var processed int64
	total := int64(len(regions))

	for i := range regions {
		region := regions[i]
		g.Go(func() error {
			if task != nil && task.Cancelled() {
				return nil
			}
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			if pauseWhileScanning {
				time.Sleep(pauseYield)
			}

			if err := snapshot.ReadAllMemoryChunked(region, c.Reader, c.ChunkBytes); err != nil {
				// Unreadable region: mark size 0 so the filter below
				// drops it before the regions are put back, per spec.md §4.4.
				region.Size = 0
			}

			n := atomic.AddInt64(&processed, 1)
			if task != nil && n%32 == 0 {
				task.SetProgress(float64(n) / float64(total))
			}
			return nil
		})
	}

	err := g.Wait()

	kept := regions[:0]
	for _, r := range regions {
		if r.Size > 0 {
			kept = append(kept, r)
		}
	}
	regions = kept

	if task != nil {
		task.SetProgress(1)
	}
	return err
}
