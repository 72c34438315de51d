// Package scanner implements the SIMD Aligned Vector Scanner and Scan
// Dispatcher of spec.md §4.5/§4.6: per-region, per-filter-collection
// evaluation of a scan predicate, narrowing filters via run-length
// encoding.
package scanner

// RLE is the Run-Length Encoder of spec.md §4.6: walks a filter's byte
// range left to right, coalescing adjacent matching strides into the
// fewest possible (base, size) sub-regions.
type RLE struct {
	base uint64

	runBase   uint64
	runLength uint64
	haveRun   bool

	cursor  uint64
	emitted []Subregion
}

// Subregion is one narrowed, matching (base, size) range emitted by the
// encoder.
type Subregion struct {
	Base uint64
	Size uint64
}

// NewRLE starts an encoder at filterBase; all offsets passed to Encode and
// Finalize are relative to filterBase.
func NewRLE(filterBase uint64) *RLE {
	return &RLE{base: filterBase}
}

// Encode extends the current run by stride bytes (a matching lane/byte
// range), per spec.md §4.6's encode_range.
func (e *RLE) Encode(stride uint64) {
	if stride == 0 {
		return
	}
	if !e.haveRun {
		e.runBase = e.base + e.cursor
		e.haveRun = true
	}
	e.runLength += stride
	e.cursor += stride
}

// Finalize closes the current run, if any (emitting it to the result
// list), then advances the cursor by stride bytes of non-matching data,
// per spec.md §4.6's finalize_current_encode.
func (e *RLE) Finalize(stride uint64) {
	if e.haveRun && e.runLength > 0 {
		e.emitted = append(e.emitted, Subregion{Base: e.runBase, Size: e.runLength})
	}
	e.haveRun = false
	e.runLength = 0
	e.cursor += stride
}

// Result finalizes with a zero-length finalize and returns the harvested
// disjoint, ordered sub-regions, per spec.md §4.6 step 6.
func (e *RLE) Result() []Subregion {
	e.Finalize(0)
	return e.emitted
}
