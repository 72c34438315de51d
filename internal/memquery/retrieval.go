package memquery

import (
	"github.com/sirupsen/logrus"

	"github.com/memscan/engine/internal/settings"
)

// SnapshotCap bounds how much memory a single "new scan" may pull in, per
// spec.md §4.1: the tool must never build a snapshot so large it OOMs the
// host.
const SnapshotCap = 2 << 30 // 2 GiB

// Retrieval produces the planner-facing high-level page lists: FromUserMode,
// FromSettings (with its cascading fallback ladder), FromModules,
// FromNonModules, and ByAddressRange.
type Retrieval struct {
	Q   Queryer
	Log *logrus.Entry
}

func NewRetrieval(q Queryer, log *logrus.Entry) *Retrieval {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Retrieval{Q: q, Log: log}
}

// FromUserMode returns every usermode region, any type, no protection
// filter. Used by MemoryRegions (always this mode, never FromSettings, so
// UI/pointer-scan navigation never hides a requested region).
func (r *Retrieval) FromUserMode() []Descriptor {
	return r.Q.VirtualPages(0, 0, AllTypes, r.Q.MinUsermodeAddress(), r.Q.MaxUsermodeAddress(), BoundsExclude)
}

// ByAddressRange returns usermode regions clipped to [start, end).
func (r *Retrieval) ByAddressRange(start, end uint64) []Descriptor {
	return r.Q.VirtualPages(0, 0, AllTypes, start, end, BoundsResize)
}

// FromModules returns the base regions of every loaded module, the input to
// a "statics" pointer scan snapshot.
func (r *Retrieval) FromModules() []Descriptor {
	modules := r.Q.Modules()
	out := make([]Descriptor, 0, len(modules))
	for _, m := range modules {
		out = append(out, Descriptor{Region: m.Region, Protection: Read, Type: TypeImage, PathName: m.Name})
	}
	return out
}

// FromNonModules returns usermode regions whose base is not any module
// base, the input to a "heaps" pointer scan snapshot.
func (r *Retrieval) FromNonModules() []Descriptor {
	modules := r.Q.Modules()
	moduleBases := make(map[uint64]bool, len(modules))
	for _, m := range modules {
		moduleBases[m.Base] = true
	}
	all := r.FromUserMode()
	out := all[:0:0]
	for _, d := range all {
		if !moduleBases[d.Base] {
			out = append(out, d)
		}
	}
	return out
}

func sizeOf(descriptors []Descriptor) uint64 {
	var n uint64
	for _, d := range descriptors {
		n += d.Size
	}
	return n
}

// FromSettings applies the configured memory filters and runs the
// cascading fallback ladder of spec.md §4.1 whenever the result is empty or
// exceeds SnapshotCap: (1) relax required protection, (2) usermode+writable
// over all four allocation types, (3) PRIVATE-only writable, (4) truncate to
// cap, (5) last resort, all usermode pages. Each step is logged.
func (r *Retrieval) FromSettings(s *settings.MemorySettings) []Descriptor {
	start, end := s.StartAddress, s.EndAddress
	if end == 0 {
		end = r.Q.MaxUsermodeAddress()
	}
	if s.OnlyQueryUsermode {
		if start < r.Q.MinUsermodeAddress() {
			start = r.Q.MinUsermodeAddress()
		}
		if end > r.Q.MaxUsermodeAddress() {
			end = r.Q.MaxUsermodeAddress()
		}
	}

	required, excluded, allowed := protectionAndTypes(s)

	result := r.Q.VirtualPages(required, excluded, allowed, start, end, BoundsResize)
	size := sizeOf(result)
	if size > 0 && size <= SnapshotCap {
		return result
	}
	r.Log.WithField("bytes", size).Warn("memquery: settings-filtered pages are empty or oversize, falling back")

	// Step 1: relax required protection flags, keep exclusions.
	result = r.Q.VirtualPages(0, excluded, allowed, start, end, BoundsResize)
	size = sizeOf(result)
	if size > 0 && size <= SnapshotCap {
		r.Log.Info("memquery: fallback step 1 (relaxed required protection) succeeded")
		return result
	}

	// Step 2: usermode + writable, all four allocation types.
	result = r.Q.VirtualPages(Write, 0, AllTypes, r.Q.MinUsermodeAddress(), r.Q.MaxUsermodeAddress(), BoundsExclude)
	size = sizeOf(result)
	if size > 0 && size <= SnapshotCap {
		r.Log.Info("memquery: fallback step 2 (usermode+writable, all types) succeeded")
		return result
	}

	// Step 3: PRIVATE-only writable.
	result = r.Q.VirtualPages(Write, 0, TypePrivate, r.Q.MinUsermodeAddress(), r.Q.MaxUsermodeAddress(), BoundsExclude)
	size = sizeOf(result)
	if size > 0 && size <= SnapshotCap {
		r.Log.Info("memquery: fallback step 3 (PRIVATE-only writable) succeeded")
		return result
	}

	// Step 4: truncate whatever we have to the cap.
	if size > SnapshotCap {
		r.Log.Warn("memquery: fallback step 4, truncating to snapshot cap")
		return truncateToCap(result, SnapshotCap)
	}

	// Step 5: last resort, all usermode pages, truncated if needed.
	r.Log.Warn("memquery: fallback step 5, all usermode pages")
	result = r.FromUserMode()
	if sizeOf(result) > SnapshotCap {
		return truncateToCap(result, SnapshotCap)
	}
	return result
}

func truncateToCap(descriptors []Descriptor, cap uint64) []Descriptor {
	var out []Descriptor
	var total uint64
	for _, d := range descriptors {
		if total+d.Size > cap {
			remaining := cap - total
			if remaining == 0 {
				break
			}
			out = append(out, Descriptor{Region: Region{Base: d.Base, Size: remaining}, Protection: d.Protection, Type: d.Type, PathName: d.PathName})
			break
		}
		out = append(out, d)
		total += d.Size
	}
	return out
}
