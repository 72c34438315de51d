package datatype

import "encoding/binary"

// vectorizeImmediate turns a per-lane ScalarImmediate into a VectorImmediate
// that walks a whole buffer in one call, writing one mask byte (0x00/0xFF)
// per lane into out. This is the engine's "SIMD" dispatch of spec.md §4.6:
// real portable Go has no intrinsic-level SIMD, so the vector comparator is
// a tight batch loop with one lane per width-byte element rather than
// hardware lanes — see
// DESIGN.md for why this one spot stays on top of the standard library
// instead of a vendor SIMD package.
func vectorizeImmediate(width int, scalar ScalarImmediate) VectorImmediate {
	return func(current, immediate []byte, order binary.ByteOrder, tol Tolerance, out []byte) {
		lanes := len(current) / width
		for i := 0; i < lanes; i++ {
			lane := current[i*width : i*width+width]
			if scalar(lane, immediate, order, tol) {
				out[i] = 0xFF
			} else {
				out[i] = 0x00
			}
		}
	}
}

func vectorizeRelative(width int, scalar ScalarRelative) VectorRelative {
	return func(current, previous, immediate []byte, order binary.ByteOrder, tol Tolerance, out []byte) {
		lanes := len(current) / width
		for i := 0; i < lanes; i++ {
			curLane := current[i*width : i*width+width]
			prevLane := previous[i*width : i*width+width]
			if scalar(curLane, prevLane, immediate, order, tol) {
				out[i] = 0xFF
			} else {
				out[i] = 0x00
			}
		}
	}
}

// MaskAllTrue reports whether every lane byte in mask is 0xFF.
func MaskAllTrue(mask []byte) bool {
	for _, b := range mask {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// MaskAllFalse reports whether every lane byte in mask is 0x00.
func MaskAllFalse(mask []byte) bool {
	for _, b := range mask {
		if b != 0x00 {
			return false
		}
	}
	return true
}
