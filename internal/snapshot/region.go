// Package snapshot implements the Snapshot and Snapshot Region model of
// spec.md §3–§4.3: merged page ranges carrying current/previous byte
// buffers and per-region scan-result filters, the substrate every scan
// pass operates on.
package snapshot

import (
	"fmt"
	"sort"
)

// Filter is a (base, size) sub-region inside one snapshot region, per
// spec.md §3: addresses still passing the cumulative scan so far.
type Filter struct {
	Base uint64
	Size uint64
}

func (f Filter) End() uint64 { return f.Base + f.Size }

// FilterCollection groups filters by the data type they were generated
// for; multi-type scans produce multiple collections per region.
type FilterCollection struct {
	DataType string
	Filters  []Filter
}

// Region is one contiguous merged range within a snapshot, spanning
// possibly several OS pages, per spec.md §3's Snapshot Region.
type Region struct {
	Base uint64
	Size uint64

	CurrentValues  []byte
	PreviousValues []byte

	// PageBoundaries are absolute addresses where underlying OS pages
	// abut within this region; strictly increasing, strictly inside
	// (Base, Base+Size). Empty for single-page regions.
	PageBoundaries []uint64

	// PageBoundaryTombstones holds addresses whose most-recent read
	// failed; informational only.
	PageBoundaryTombstones []uint64

	// ScanResults is keyed by data type ID string.
	ScanResults map[string]*FilterCollection
}

func NewRegion(base, size uint64, pageBoundaries []uint64) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("snapshot: zero-size region at %#x is invalid", base)
	}
	for i, b := range pageBoundaries {
		if b <= base || b >= base+size {
			return nil, fmt.Errorf("snapshot: page boundary %#x lies outside region (%#x,+%#x)", b, base, size)
		}
		if i > 0 && b <= pageBoundaries[i-1] {
			return nil, fmt.Errorf("snapshot: page boundaries must be strictly increasing")
		}
	}
	return &Region{
		Base:           base,
		Size:           size,
		PageBoundaries: pageBoundaries,
		ScanResults:    make(map[string]*FilterCollection),
	}, nil
}

func (r *Region) End() uint64 { return r.Base + r.Size }

// checkBufferInvariant enforces spec.md §3/§8: current/previous buffer
// length is either 0 or exactly Size.
func (r *Region) checkBufferInvariant() error {
	if len(r.CurrentValues) != 0 && uint64(len(r.CurrentValues)) != r.Size {
		return fmt.Errorf("snapshot: current_values length %d != size %d", len(r.CurrentValues), r.Size)
	}
	if len(r.PreviousValues) != 0 && uint64(len(r.PreviousValues)) != r.Size {
		return fmt.Errorf("snapshot: previous_values length %d != size %d", len(r.PreviousValues), r.Size)
	}
	return nil
}

// boundarySlices partitions [0, Size) at each page boundary (relative to
// Base), returning the byte offset ranges each OS page/chunk occupies.
func (r *Region) boundarySlices() [][2]uint64 {
	if len(r.PageBoundaries) == 0 {
		return [][2]uint64{{0, r.Size}}
	}
	bounds := make([]uint64, 0, len(r.PageBoundaries)+1)
	for _, b := range r.PageBoundaries {
		bounds = append(bounds, b-r.Base)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })

	out := make([][2]uint64, 0, len(bounds)+1)
	prev := uint64(0)
	for _, b := range bounds {
		out = append(out, [2]uint64{prev, b})
		prev = b
	}
	out = append(out, [2]uint64{prev, r.Size})
	return out
}

// SetFilters replaces the filter collection for dataType, dropping
// zero-size filters per the size-0-is-invalid invariant.
func (r *Region) SetFilters(dataType string, filters []Filter) {
	kept := filters[:0:0]
	for _, f := range filters {
		if f.Size > 0 {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		delete(r.ScanResults, dataType)
		return
	}
	r.ScanResults[dataType] = &FilterCollection{DataType: dataType, Filters: kept}
}

// SnapshotFilters returns a shallow copy of the region's current per-type
// filter collections, so a caller can roll back an aborted scan pass to
// this point via RestoreFilters. Safe to call alongside concurrent
// SetFilters on other regions since each region is only ever touched by
// one scan-pass worker at a time.
func (r *Region) SnapshotFilters() map[string]*FilterCollection {
	out := make(map[string]*FilterCollection, len(r.ScanResults))
	for k, v := range r.ScanResults {
		out[k] = v
	}
	return out
}

// RestoreFilters replaces the region's filter collections wholesale,
// undoing any in-place narrowing left behind by a cancelled or timed-out
// scan pass.
func (r *Region) RestoreFilters(baseline map[string]*FilterCollection) {
	r.ScanResults = baseline
}

func (r *Region) FilterCount(dataType string) int {
	fc, ok := r.ScanResults[dataType]
	if !ok {
		return 0
	}
	return len(fc.Filters)
}
