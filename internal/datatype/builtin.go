package datatype

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func buildImmediateTable(width int, signed bool) map[CompareType]ScalarImmediate {
	m := make(map[CompareType]ScalarImmediate, len(allImmediateCompares))
	for _, c := range allImmediateCompares {
		m[c] = intImmediateCompare(width, signed, c)
	}
	return m
}

func buildRelativeTable(width int, signed bool) map[CompareType]ScalarRelative {
	m := make(map[CompareType]ScalarRelative, len(allRelativeCompares))
	for _, c := range allRelativeCompares {
		m[c] = intRelative(width, signed, c)
	}
	return m
}

func buildVecImmediateTable(width int, table map[CompareType]ScalarImmediate) map[CompareType]VectorImmediate {
	m := make(map[CompareType]VectorImmediate, len(table))
	for c, fn := range table {
		m[c] = vectorizeImmediate(width, fn)
	}
	return m
}

func buildVecRelativeTable(width int, table map[CompareType]ScalarRelative) map[CompareType]VectorRelative {
	m := make(map[CompareType]VectorRelative, len(table))
	for c, fn := range table {
		m[c] = vectorizeRelative(width, fn)
	}
	return m
}

func registerInt(id ID, width int, signed bool, order binary.ByteOrder) {
	imm := buildImmediateTable(width, signed)
	rel := buildRelativeTable(width, signed)
	register(&Type{
		ID:        id,
		UnitSize:  width,
		ByteOrder: order,
		Signed:    signed,
		Parse:     intParser(width, signed, order),
		Format:    intFormatter(width, signed, order),
		Immediate: imm,
		Relative:  rel,

		VecImmediate: buildVecImmediateTable(width, imm),
		VecRelative:  buildVecRelativeTable(width, rel),
	})
}

func intParser(width int, signed bool, order binary.ByteOrder) func(string) ([]byte, error) {
	return func(s string) ([]byte, error) {
		s = strings.TrimSpace(s)
		if signed {
			v, err := strconv.ParseInt(s, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("datatype: invalid integer %q: %w", s, err)
			}
			return encodeInt(v, order, width), nil
		}
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("datatype: invalid integer %q: %w", s, err)
		}
		return encodeInt(int64(v), order, width), nil
	}
}

func intFormatter(width int, signed bool, order binary.ByteOrder) func([]byte) string {
	return func(b []byte) string {
		v := decodeInt(b, order, width, signed)
		if signed {
			return strconv.FormatInt(v, 10)
		}
		return strconv.FormatUint(uint64(v), 10)
	}
}

func registerFloat(id ID, width int, order binary.ByteOrder) {
	imm := make(map[CompareType]ScalarImmediate, len(allImmediateCompares))
	for _, c := range allImmediateCompares {
		imm[c] = floatImmediateCompare(width, c)
	}
	rel := make(map[CompareType]ScalarRelative, len(allRelativeCompares))
	for _, c := range allRelativeCompares {
		rel[c] = floatRelative(width, c)
	}
	register(&Type{
		ID:        id,
		UnitSize:  width,
		ByteOrder: order,
		Signed:    true,
		Parse:     floatParser(width, order),
		Format:    floatFormatter(width, order),
		Immediate: imm,
		Relative:  rel,

		VecImmediate: buildVecImmediateTable(width, imm),
		VecRelative:  buildVecRelativeTable(width, rel),
	})
}

func floatParser(width int, order binary.ByteOrder) func(string) ([]byte, error) {
	return func(s string) ([]byte, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("datatype: invalid float %q: %w", s, err)
		}
		buf := make([]byte, width)
		if width == 4 {
			order.PutUint32(buf, math.Float32bits(float32(v)))
		} else {
			order.PutUint64(buf, math.Float64bits(v))
		}
		return buf, nil
	}
}

func floatFormatter(width int, order binary.ByteOrder) func([]byte) string {
	return func(b []byte) string {
		v := decodeFloat(b, order, width)
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

func registerBool() {
	imm := map[CompareType]ScalarImmediate{
		CompareEqual:    func(c, i []byte, _ binary.ByteOrder, _ Tolerance) bool { return (c[0] != 0) == (i[0] != 0) },
		CompareNotEqual: func(c, i []byte, _ binary.ByteOrder, _ Tolerance) bool { return (c[0] != 0) != (i[0] != 0) },
	}
	rel := map[CompareType]ScalarRelative{
		CompareChanged:   func(c, p, _ []byte, _ binary.ByteOrder, _ Tolerance) bool { return (c[0] != 0) != (p[0] != 0) },
		CompareUnchanged: func(c, p, _ []byte, _ binary.ByteOrder, _ Tolerance) bool { return (c[0] != 0) == (p[0] != 0) },
	}
	register(&Type{
		ID:        Bool,
		UnitSize:  1,
		ByteOrder: binary.LittleEndian,
		Parse: func(s string) ([]byte, error) {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "1":
				return []byte{1}, nil
			case "false", "0":
				return []byte{0}, nil
			}
			return nil, fmt.Errorf("datatype: invalid bool %q", s)
		},
		Format: func(b []byte) string {
			if b[0] != 0 {
				return "true"
			}
			return "false"
		},
		Immediate:    imm,
		Relative:     rel,
		VecImmediate: buildVecImmediateTable(1, imm),
		VecRelative:  buildVecRelativeTable(1, rel),
	})
}

func registerAOB() {
	register(&Type{
		ID:       AOB,
		Variable: true,
		Parse:    ParseAOB,
		Format:   FormatAOB,
		Immediate: map[CompareType]ScalarImmediate{
			CompareEqual: func(c, i []byte, _ binary.ByteOrder, _ Tolerance) bool {
				return aobEqual(c, i)
			},
			CompareNotEqual: func(c, i []byte, _ binary.ByteOrder, _ Tolerance) bool {
				return !aobEqual(c, i)
			},
		},
	})
}

func aobEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func registerStringUTF8() {
	register(&Type{
		ID:       StringUTF8,
		Variable: true,
		Parse:    func(s string) ([]byte, error) { return []byte(s), nil },
		Format:   func(b []byte) string { return string(b) },
		Immediate: map[CompareType]ScalarImmediate{
			CompareEqual:    func(c, i []byte, _ binary.ByteOrder, _ Tolerance) bool { return string(c) == string(i) },
			CompareNotEqual: func(c, i []byte, _ binary.ByteOrder, _ Tolerance) bool { return string(c) != string(i) },
		},
	})
}

func init() {
	registerInt(U8, 1, false, binary.LittleEndian)
	registerInt(I8, 1, true, binary.LittleEndian)
	registerInt(U16, 2, false, binary.LittleEndian)
	registerInt(U16BE, 2, false, binary.BigEndian)
	registerInt(I16, 2, true, binary.LittleEndian)
	registerInt(I16BE, 2, true, binary.BigEndian)
	registerInt(U32, 4, false, binary.LittleEndian)
	registerInt(U32BE, 4, false, binary.BigEndian)
	registerInt(I32, 4, true, binary.LittleEndian)
	registerInt(I32BE, 4, true, binary.BigEndian)
	registerInt(U64, 8, false, binary.LittleEndian)
	registerInt(U64BE, 8, false, binary.BigEndian)
	registerInt(I64, 8, true, binary.LittleEndian)
	registerInt(I64BE, 8, true, binary.BigEndian)

	registerFloat(F32, 4, binary.LittleEndian)
	registerFloat(F32BE, 4, binary.BigEndian)
	registerFloat(F64, 8, binary.LittleEndian)
	registerFloat(F64BE, 8, binary.BigEndian)

	registerBool()
	registerStringUTF8()
	registerAOB()
}
