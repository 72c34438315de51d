package datatype

import (
	"encoding/binary"
	"math"
)

// decodeInt reads a width-byte, possibly-signed integer as an int64 (sign
// extended) so every integer width can share one comparison core.
func decodeInt(buf []byte, order binary.ByteOrder, width int, signed bool) int64 {
	var u uint64
	switch width {
	case 1:
		u = uint64(buf[0])
	case 2:
		u = uint64(order.Uint16(buf))
	case 4:
		u = uint64(order.Uint32(buf))
	case 8:
		u = order.Uint64(buf)
	}
	if !signed {
		return int64(u)
	}
	switch width {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

func encodeInt(v int64, order binary.ByteOrder, width int) []byte {
	buf := make([]byte, width)
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, uint64(v))
	}
	return buf
}

// intImmediateCompare builds one comparator per CompareType so the scanner
// dispatch can select by the finalized constraint's operator.
func intImmediateCompare(width int, signed bool, cmp CompareType) ScalarImmediate {
	return func(current, immediate []byte, order binary.ByteOrder, _ Tolerance) bool {
		a := decodeInt(current, order, width, signed)
		b := decodeInt(immediate, order, width, signed)
		switch cmp {
		case CompareEqual:
			return a == b
		case CompareNotEqual:
			return a != b
		case CompareLess:
			return a < b
		case CompareLessEqual:
			return a <= b
		case CompareGreater:
			return a > b
		case CompareGreaterEqual:
			return a >= b
		default:
			return false
		}
	}
}

func intRelative(width int, signed bool, cmp CompareType) ScalarRelative {
	return func(current, previous, immediate []byte, order binary.ByteOrder, _ Tolerance) bool {
		cur := decodeInt(current, order, width, signed)
		prev := decodeInt(previous, order, width, signed)
		switch cmp {
		case CompareChanged:
			return cur != prev
		case CompareUnchanged:
			return cur == prev
		case CompareIncreased:
			return cur > prev
		case CompareDecreased:
			return cur < prev
		case CompareIncreasedBy:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev+delta
		case CompareDecreasedBy:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev-delta
		case CompareMultipliedBy:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev*delta
		case CompareDividedBy:
			delta := decodeInt(immediate, order, width, signed)
			return delta != 0 && cur == prev/delta
		case CompareModuloBy:
			delta := decodeInt(immediate, order, width, signed)
			return delta != 0 && cur == prev%delta
		case CompareShlBy:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev<<uint(delta)
		case CompareShrBy:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev>>uint(delta)
		case CompareAnd:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev&delta
		case CompareOr:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev|delta
		case CompareXor:
			delta := decodeInt(immediate, order, width, signed)
			return cur == prev^delta
		default:
			return false
		}
	}
}

var allImmediateCompares = []CompareType{
	CompareEqual, CompareNotEqual, CompareLess, CompareLessEqual, CompareGreater, CompareGreaterEqual,
}

var allRelativeCompares = []CompareType{
	CompareChanged, CompareUnchanged, CompareIncreased, CompareDecreased,
	CompareIncreasedBy, CompareDecreasedBy, CompareMultipliedBy, CompareDividedBy,
	CompareModuloBy, CompareShlBy, CompareShrBy, CompareAnd, CompareOr, CompareXor,
}

func decodeFloat(buf []byte, order binary.ByteOrder, width int) float64 {
	if width == 4 {
		return float64(math.Float32frombits(order.Uint32(buf)))
	}
	return math.Float64frombits(order.Uint64(buf))
}

func floatWithinTolerance(a, b float64, tol Tolerance) bool {
	if tol.Absolute == 0 {
		return a == b
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol.Absolute
}

func floatImmediateCompare(width int, cmp CompareType) ScalarImmediate {
	return func(current, immediate []byte, order binary.ByteOrder, tol Tolerance) bool {
		a := decodeFloat(current, order, width)
		b := decodeFloat(immediate, order, width)
		switch cmp {
		case CompareEqual:
			return floatWithinTolerance(a, b, tol)
		case CompareNotEqual:
			return !floatWithinTolerance(a, b, tol)
		case CompareLess:
			return a < b
		case CompareLessEqual:
			return a <= b
		case CompareGreater:
			return a > b
		case CompareGreaterEqual:
			return a >= b
		default:
			return false
		}
	}
}

func floatRelative(width int, cmp CompareType) ScalarRelative {
	return func(current, previous, immediate []byte, order binary.ByteOrder, tol Tolerance) bool {
		cur := decodeFloat(current, order, width)
		prev := decodeFloat(previous, order, width)
		switch cmp {
		case CompareChanged:
			return !floatWithinTolerance(cur, prev, tol)
		case CompareUnchanged:
			return floatWithinTolerance(cur, prev, tol)
		case CompareIncreased:
			return cur > prev
		case CompareDecreased:
			return cur < prev
		case CompareIncreasedBy:
			delta := decodeFloat(immediate, order, width)
			return floatWithinTolerance(cur, prev+delta, tol)
		case CompareDecreasedBy:
			delta := decodeFloat(immediate, order, width)
			return floatWithinTolerance(cur, prev-delta, tol)
		case CompareMultipliedBy:
			delta := decodeFloat(immediate, order, width)
			return floatWithinTolerance(cur, prev*delta, tol)
		case CompareDividedBy:
			delta := decodeFloat(immediate, order, width)
			return delta != 0 && floatWithinTolerance(cur, prev/delta, tol)
		default:
			return false
		}
	}
}
