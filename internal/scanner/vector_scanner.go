package scanner

import (
	"encoding/binary"

	"github.com/memscan/engine/internal/datatype"
)

// DefaultLaneBytes is the vector chunk width used when nothing narrower is
// forced; it does not claim to be a hardware vector register width, only a
// convenient batch size for the pure-Go comparator loop (see DESIGN.md).
const DefaultLaneBytes = 16

// ScanFilter evaluates one finalized constraint against one filter's
// current/previous byte ranges, producing the narrowed sub-regions per
// spec.md §4.6. current and previous (previous may be nil for the
// Immediate family) must each span exactly [filterBase, filterBase+len).
func ScanFilter(
	current, previous []byte,
	filterBase uint64,
	typ *datatype.Type,
	compare datatype.CompareType,
	immediate datatype.Value,
	tol datatype.Tolerance,
	alignment int,
	laneBytes int,
) []Subregion {
	order := typ.ByteOrder
	family := compare.Family()
	rle := NewRLE(filterBase)

	if typ.Variable {
		scanVariable(rle, current, previous, typ, compare, immediate, order, tol)
		return rle.Result()
	}

	unitSize := typ.UnitSize
	if unitSize <= 0 || alignment <= 0 {
		return nil
	}

	scalar, hasScalar, vec, hasVec := lookupComparators(typ, family, compare)
	if !hasScalar && !hasVec {
		return nil
	}

	aligned := unitSize == alignment
	consumed := 0

	if aligned && hasVec && laneBytes >= unitSize {
		consumed = scanVectorized(rle, current, previous, immediate.Bytes, order, tol, unitSize, alignment, laneBytes, vec, family)
	}

	if hasScalar {
		scanScalarTail(rle, current, previous, immediate.Bytes, order, tol, unitSize, alignment, consumed, scalar, family)
	}

	return rle.Result()
}

// lookupComparators resolves the scalar and (if present) vector comparator
// for compare against typ's Immediate/Relative vtables per its family. The
// bool results distinguish "present" from Go's typed-nil-in-interface trap,
// since a missing map entry still yields a non-nil interface value.
func lookupComparators(typ *datatype.Type, family datatype.Family, compare datatype.CompareType) (scalarAny interface{}, hasScalar bool, vecAny interface{}, hasVec bool) {
	switch family {
	case datatype.FamilyImmediate:
		s, sok := typ.Immediate[compare]
		v, vok := typ.VecImmediate[compare]
		return s, sok, v, vok
	default:
		s, sok := typ.Relative[compare]
		v, vok := typ.VecRelative[compare]
		return s, sok, v, vok
	}
}

// scanVectorized runs the chunked vector comparator over the largest
// prefix of current that divides evenly into laneBytes chunks, per
// spec.md §4.6 steps 1-4. Returns the number of bytes consumed.
func scanVectorized(
	rle *RLE,
	current, previous, immediate []byte,
	order binary.ByteOrder,
	tol datatype.Tolerance,
	unitSize, alignment, laneBytes int,
	vec interface{},
	family datatype.Family,
) int {
	s := len(current)
	iterations := s / laneBytes
	lanesPerChunk := laneBytes / unitSize
	mask := make([]byte, lanesPerChunk)

	for i := 0; i < iterations; i++ {
		off := i * laneBytes
		cur := current[off : off+laneBytes]

		switch family {
		case datatype.FamilyImmediate:
			vec.(datatype.VectorImmediate)(cur, immediate, order, tol, mask)
		default:
			prev := previous[off : off+laneBytes]
			vec.(datatype.VectorRelative)(cur, prev, immediate, order, tol, mask)
		}

		switch {
		case datatype.MaskAllTrue(mask):
			rle.Encode(uint64(laneBytes))
		case datatype.MaskAllFalse(mask):
			rle.Finalize(uint64(laneBytes))
		default:
			for lane := 0; lane < lanesPerChunk; lane++ {
				if mask[lane] == 0xFF {
					rle.Encode(uint64(alignment))
				} else {
					rle.Finalize(uint64(alignment))
				}
			}
		}
	}
	return iterations * laneBytes
}

// scanScalarTail walks the remainder of current (and, for remaining space,
// also any bytes skipped because no vector comparator applied) element by
// element at alignment stride, per spec.md §4.6 step 4/5.
func scanScalarTail(
	rle *RLE,
	current, previous, immediate []byte,
	order binary.ByteOrder,
	tol datatype.Tolerance,
	unitSize, alignment, start int,
	scalar interface{},
	family datatype.Family,
) {
	for off := start; off+unitSize <= len(current); off += alignment {
		cur := current[off : off+unitSize]
		var match bool
		switch family {
		case datatype.FamilyImmediate:
			match = scalar.(datatype.ScalarImmediate)(cur, immediate, order, tol)
		default:
			prev := previous[off : off+unitSize]
			match = scalar.(datatype.ScalarRelative)(cur, prev, immediate, order, tol)
		}
		if match {
			rle.Encode(uint64(alignment))
		} else {
			rle.Finalize(uint64(alignment))
		}
	}
}

// scanVariable handles string_utf8/aob types: the whole filter is treated
// as a single comparison unit rather than lane-stepped, since these types
// carry no fixed unit size.
func scanVariable(
	rle *RLE,
	current, previous []byte,
	typ *datatype.Type,
	compare datatype.CompareType,
	immediate datatype.Value,
	order binary.ByteOrder,
	tol datatype.Tolerance,
) {
	family := compare.Family()
	var match bool
	switch family {
	case datatype.FamilyImmediate:
		if fn, ok := typ.Immediate[compare]; ok {
			match = fn(current, immediate.Bytes, order, tol)
		}
	default:
		if fn, ok := typ.Relative[compare]; ok {
			match = fn(current, previous, immediate.Bytes, order, tol)
		}
	}
	if match {
		rle.Encode(uint64(len(current)))
	} else {
		rle.Finalize(uint64(len(current)))
	}
}
