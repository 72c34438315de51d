package snapshot

import (
	"fmt"

	"github.com/memscan/engine/internal/memio"
)

// MinChunkBytes and MaxChunkBytes bound the read_all_memory_chunked
// segment size to [1 KiB, 16 MiB], per spec.md §4.3.
const (
	MinChunkBytes = 1 << 10
	MaxChunkBytes = 16 << 20
)

func ClampChunkBytes(n int) int {
	if n < MinChunkBytes {
		return MinChunkBytes
	}
	if n > MaxChunkBytes {
		return MaxChunkBytes
	}
	return n
}

// ReadAllMemory implements spec.md §4.3's contract:
//  1. precondition size > 0;
//  2. swap current/previous (allocate current if it was empty);
//  3. if no page boundaries, one read over the whole region;
//  4. otherwise, read each boundary-delimited slice independently so one
//     deallocated page cannot poison its neighbors;
//  5. collect tombstones for failed slices;
//  6. return an error only if every slice failed.
func ReadAllMemory(r *Region, reader memio.Reader) error {
	return readAllMemory(r, reader, r.Size)
}

// ReadAllMemoryChunked is the same contract, but segments are further split
// into chunkBytes-sized pieces (clamped to [1 KiB, 16 MiB]).
func ReadAllMemoryChunked(r *Region, reader memio.Reader, chunkBytes int) error {
	return readAllMemory(r, reader, uint64(ClampChunkBytes(chunkBytes)))
}

func readAllMemory(r *Region, reader memio.Reader, chunkBytes uint64) error {
	if r.Size == 0 {
		return fmt.Errorf("snapshot: read_all_memory precondition violated, region size is 0")
	}

	r.PreviousValues, r.CurrentValues = r.CurrentValues, r.PreviousValues
	if len(r.CurrentValues) == 0 {
		r.CurrentValues = make([]byte, r.Size)
	}

	r.PageBoundaryTombstones = r.PageBoundaryTombstones[:0]

	succeeded := 0
	failed := 0
	for _, seg := range r.boundarySlices() {
		segBuf := r.CurrentValues[seg[0]:seg[1]]
		ok := readInChunks(reader, r.Base+seg[0], segBuf, chunkBytes)
		if ok {
			succeeded++
		} else {
			failed++
			r.PageBoundaryTombstones = append(r.PageBoundaryTombstones, r.Base+seg[0])
		}
	}

	if succeeded == 0 && failed > 0 {
		return fmt.Errorf("snapshot: all %d slice(s) of region %#x failed to read", failed, r.Base)
	}
	return nil
}

// readInChunks reads into buf in chunkBytes-sized pieces; it fails (and
// returns false) if any sub-chunk fails, matching "a slice" failing as one
// unit from the caller's point of view.
func readInChunks(reader memio.Reader, address uint64, buf []byte, chunkBytes uint64) bool {
	if chunkBytes == 0 || chunkBytes >= uint64(len(buf)) {
		return reader.ReadBytes(address, buf)
	}
	off := uint64(0)
	for off < uint64(len(buf)) {
		end := off + chunkBytes
		if end > uint64(len(buf)) {
			end = uint64(len(buf))
		}
		if !reader.ReadBytes(address+off, buf[off:end]) {
			return false
		}
		off = end
	}
	return true
}
