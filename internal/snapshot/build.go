package snapshot

import (
	"sort"

	"github.com/memscan/engine/internal/memquery"
)

// Build creates the regions for a "new scan" from queried memory pages:
// adjacent descriptors are coalesced into one merged Region, recording the
// seam addresses as PageBoundaries, per spec.md §3's Snapshot Region
// lifecycle.
func Build(descriptors []memquery.Descriptor) []*Region {
	if len(descriptors) == 0 {
		return nil
	}
	sorted := make([]memquery.Descriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Base < sorted[j].Base })

	var regions []*Region
	runStart := sorted[0].Base
	runEnd := sorted[0].End()
	var boundaries []uint64

	flush := func() {
		r, err := NewRegion(runStart, runEnd-runStart, boundaries)
		if err != nil {
			return
		}
		regions = append(regions, r)
	}

	for _, d := range sorted[1:] {
		if d.Base == runEnd {
			boundaries = append(boundaries, d.Base)
			runEnd = d.End()
			continue
		}
		flush()
		runStart = d.Base
		runEnd = d.End()
		boundaries = nil
	}
	flush()
	return regions
}
