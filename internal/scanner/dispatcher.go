package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/planner"
	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

// pauseYield is the per-region-unit yield spec.md §5 calls for when
// pause_while_scanning is set, to keep the UI responsive.
const pauseYield = time.Millisecond

// progressEvery matches the collector's cadence in spec.md §5: "every 32
// regions" for both the collector and the dispatcher.
const progressEvery = 32

// Dispatcher runs an Element Scan Plan across a snapshot's regions, per
// spec.md §4.5 steps 7-10.
type Dispatcher struct {
	MaxParallel int
	LaneBytes   int
}

func New(maxParallel int) *Dispatcher {
	return &Dispatcher{MaxParallel: maxParallel, LaneBytes: DefaultLaneBytes}
}

// Run evaluates plan against every region of snap, narrowing each region's
// per-type filter collections in place, and reports progress on task.
func (d *Dispatcher) Run(ctx context.Context, snap *snapshot.Snapshot, plan *planner.ElementScanPlan, task *taskregistry.Task) error {
	if snap.IsEmpty() {
		return errEmptySnapshot
	}

	regions := snap.TakeRegions()
	defer func() { snap.PutRegions(regions) }()

	limit := d.MaxParallel
	if plan.SingleThread || len(regions) <= 1 {
		limit = 1
	}
	if limit <= 0 {
		limit = 1
	}

	var done int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, r := range regions {
		r := r
		g.Go(func() error {
			if task != nil && task.Cancelled() {
				return nil
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if plan.PauseWhileScanning {
				time.Sleep(pauseYield)
			}

			scanRegion(r, plan, d.LaneBytes)

			n := atomic.AddInt64(&done, 1)
			if task != nil && n%progressEvery == 0 {
				task.SetProgress(float64(n) / float64(len(regions)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if task != nil {
		task.SetProgress(1.0)
	}
	return nil
}

type emptySnapshotError struct{}

func (emptySnapshotError) Error() string { return "scanner: snapshot is empty, run New Scan first" }

var errEmptySnapshot = emptySnapshotError{}

// scanRegion evaluates every type-plan's constraint chain against region,
// replacing its scan_results filter collections. Per spec.md §4.6's
// "Multi-type scans" rule, collections run in parallel unless there is
// exactly one.
func scanRegion(region *snapshot.Region, plan *planner.ElementScanPlan, laneBytes int) {
	if len(plan.TypePlans) == 1 {
		scanRegionTypePlan(region, plan.TypePlans[0], plan, laneBytes)
		return
	}

	var g errgroup.Group
	for _, tp := range plan.TypePlans {
		tp := tp
		g.Go(func() error {
			scanRegionTypePlan(region, tp, plan, laneBytes)
			return nil
		})
	}
	_ = g.Wait()
}

// scanRegionTypePlan applies tp's constraints in sequence (logical AND),
// each pass narrowing the filter set produced by the previous one, seeded
// from the region's existing filters for this type or the whole region on
// a first pass.
func scanRegionTypePlan(region *snapshot.Region, tp planner.TypePlan, plan *planner.ElementScanPlan, laneBytes int) {
	typeKey := string(tp.Type.ID)

	current := existingFilters(region, typeKey)
	for _, c := range tp.Constraints {
		needsPrevious := c.Compare.Family() != datatype.FamilyImmediate
		var next []snapshot.Filter
		for _, f := range current {
			cur, prev, ok := sliceRegionBuffers(region, f, needsPrevious)
			if !ok {
				continue
			}
			subs := ScanFilter(cur, prev, f.Base, tp.Type, c.Compare, c.Value, plan.Tolerance, int(plan.Alignment), laneBytes)
			for _, s := range subs {
				next = append(next, snapshot.Filter{Base: s.Base, Size: s.Size})
			}
		}
		current = next
	}
	region.SetFilters(typeKey, current)
}

func existingFilters(region *snapshot.Region, typeKey string) []snapshot.Filter {
	if fc, ok := region.ScanResults[typeKey]; ok {
		return fc.Filters
	}
	if region.Size == 0 {
		return nil
	}
	return []snapshot.Filter{{Base: region.Base, Size: region.Size}}
}

// sliceRegionBuffers slices region's current/previous byte buffers to f's
// address range. Returns ok=false if the data needed isn't available yet
// (e.g. a relative compare before any previous-value buffer exists).
func sliceRegionBuffers(region *snapshot.Region, f snapshot.Filter, needsPrevious bool) (cur, prev []byte, ok bool) {
	if f.Base < region.Base || f.End() > region.End() {
		return nil, nil, false
	}
	lo := f.Base - region.Base
	hi := f.End() - region.Base
	if uint64(len(region.CurrentValues)) < hi {
		return nil, nil, false
	}
	cur = region.CurrentValues[lo:hi]
	if needsPrevious {
		if uint64(len(region.PreviousValues)) < hi {
			return nil, nil, false
		}
		prev = region.PreviousValues[lo:hi]
	}
	return cur, prev, true
}
