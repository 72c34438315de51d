// Package pointerscan implements the reverse pointer scan of spec.md §4.7:
// build a value→address index over statics and heap snapshots, then walk a
// bounded BFS backwards from a target address.
package pointerscan

import (
	"encoding/binary"
	"sort"

	"github.com/memscan/engine/internal/snapshot"
)

// ValueIndex is the ordered map of spec.md §4.7 step 2: pointer_value to
// the addresses where that value was observed, supporting O(log N + k)
// range queries.
type ValueIndex struct {
	keys  []uint64
	addrs map[uint64][]uint64
}

// BuildValueIndex scans regions' current values in pointer-size strides,
// recording every nonzero value up to maxUsermode inclusive (a plausible
// pointer), per spec.md §4.7 step 2. Zero values are not recorded.
func BuildValueIndex(regions []*snapshot.Region, width int, order binary.ByteOrder, maxUsermode uint64) *ValueIndex {
	idx := &ValueIndex{addrs: make(map[uint64][]uint64)}
	for _, r := range regions {
		buf := r.CurrentValues
		n := len(buf) - len(buf)%width
		for off := 0; off+width <= n; off += width {
			var v uint64
			switch width {
			case 4:
				v = uint64(order.Uint32(buf[off : off+4]))
			case 8:
				v = order.Uint64(buf[off : off+8])
			default:
				continue
			}
			if v == 0 || v > maxUsermode {
				continue
			}
			addr := r.Base + uint64(off)
			if _, ok := idx.addrs[v]; !ok {
				idx.keys = append(idx.keys, v)
			}
			idx.addrs[v] = append(idx.addrs[v], addr)
		}
	}
	sort.Slice(idx.keys, func(i, j int) bool { return idx.keys[i] < idx.keys[j] })
	return idx
}

// Range returns every observed value in [lo, hi] along with the addresses
// it was observed at, via binary search over the sorted key slice.
func (idx *ValueIndex) Range(lo, hi uint64) map[uint64][]uint64 {
	if lo > hi {
		return nil
	}
	start := sort.Search(len(idx.keys), func(i int) bool { return idx.keys[i] >= lo })
	out := make(map[uint64][]uint64)
	for i := start; i < len(idx.keys) && idx.keys[i] <= hi; i++ {
		out[idx.keys[i]] = idx.addrs[idx.keys[i]]
	}
	return out
}
