// Package datatype implements the tagged Data Type / Data Value model of
// spec.md §3: a closed set of variants, each carrying a small vtable of
// parse/format and scalar/vector comparators, per the "Polymorphic data
// types" redesign note in spec.md §9.
package datatype

import "encoding/binary"

// ID is the DataTypeRef of spec.md: a stable identifier like "u8", "i32",
// "f32be", "string_utf8", "aob".
type ID string

const (
	U8         ID = "u8"
	U16        ID = "u16"
	U16BE      ID = "u16be"
	U32        ID = "u32"
	U32BE      ID = "u32be"
	U64        ID = "u64"
	U64BE      ID = "u64be"
	I8         ID = "i8"
	I16        ID = "i16"
	I16BE      ID = "i16be"
	I32        ID = "i32"
	I32BE      ID = "i32be"
	I64        ID = "i64"
	I64BE      ID = "i64be"
	F32        ID = "f32"
	F32BE      ID = "f32be"
	F64        ID = "f64"
	F64BE      ID = "f64be"
	Bool       ID = "bool"
	StringUTF8 ID = "string_utf8"
	AOB        ID = "aob"
)

// CompareType is the user-space scan constraint operator of spec.md §3.
type CompareType string

const (
	CompareEqual        CompareType = "=="
	CompareNotEqual      CompareType = "!="
	CompareLess          CompareType = "<"
	CompareLessEqual     CompareType = "<="
	CompareGreater       CompareType = ">"
	CompareGreaterEqual  CompareType = ">="
	CompareChanged       CompareType = "changed"
	CompareUnchanged     CompareType = "unchanged"
	CompareIncreased     CompareType = "increased"
	CompareDecreased     CompareType = "decreased"
	CompareIncreasedBy   CompareType = "increased_by"
	CompareDecreasedBy   CompareType = "decreased_by"
	CompareMultipliedBy  CompareType = "multiplied_by"
	CompareDividedBy     CompareType = "divided_by"
	CompareModuloBy      CompareType = "modulo_by"
	CompareShlBy         CompareType = "shl_by"
	CompareShrBy         CompareType = "shr_by"
	CompareAnd           CompareType = "and"
	CompareOr            CompareType = "or"
	CompareXor           CompareType = "xor"
)

// Family groups compare types so callers (the planner, the dispatcher) can
// ask "does this need an immediate value" without a long switch.
type Family int

const (
	FamilyImmediate Family = iota
	FamilyRelative
	FamilyDelta
)

func (c CompareType) Family() Family {
	switch c {
	case CompareEqual, CompareNotEqual, CompareLess, CompareLessEqual, CompareGreater, CompareGreaterEqual:
		return FamilyImmediate
	case CompareChanged, CompareUnchanged, CompareIncreased, CompareDecreased:
		return FamilyRelative
	default:
		return FamilyDelta
	}
}

// Tolerance carries the planner's configured floating-point comparison
// tolerance down into a comparator; see spec.md §9 on why this is opaque
// at the type boundary.
type Tolerance struct {
	Absolute float64
}

// ScalarImmediate compares a single current-value byte slice against an
// immediate value byte slice.
type ScalarImmediate func(current []byte, immediate []byte, order binary.ByteOrder, tol Tolerance) bool

// ScalarRelative compares a single current-value byte slice against the
// previous-value byte slice at the same offset (relative/delta families;
// for delta families immediate also carries the delta operand).
type ScalarRelative func(current []byte, previous []byte, immediate []byte, order binary.ByteOrder, tol Tolerance) bool

// VectorImmediate evaluates compare across N-byte lanes of current values,
// writing a 0x00/0xFF mask byte per lane-of-unit-size into out.
type VectorImmediate func(current []byte, immediate []byte, order binary.ByteOrder, tol Tolerance, out []byte)

// VectorRelative is the vectorized analogue of ScalarRelative.
type VectorRelative func(current, previous []byte, immediate []byte, order binary.ByteOrder, tol Tolerance, out []byte)

// Type is one data type variant's full vtable, per the "closed set of
// variants plus a small vtable per variant" redesign note in spec.md §9.
type Type struct {
	ID           ID
	UnitSize     int // bytes; 0 for variable-length (string/aob)
	ByteOrder    binary.ByteOrder
	Signed       bool
	Variable     bool // true for string_utf8 and aob

	Parse  func(anonymous string) ([]byte, error)
	Format func(value []byte) string

	Immediate map[CompareType]ScalarImmediate
	Relative  map[CompareType]ScalarRelative // keyed by the relative/delta compare type

	VecImmediate map[CompareType]VectorImmediate
	VecRelative  map[CompareType]VectorRelative
}

// Registry is the static, process-wide set of known types, per spec.md §3:
// "Types are static and process-wide."
var Registry = map[ID]*Type{}

func register(t *Type) { Registry[t.ID] = t }

// Lookup returns the Type for id, or nil if unknown.
func Lookup(id ID) *Type { return Registry[id] }

// All returns every registered type, stable by insertion is not guaranteed;
// callers that need a stable order should sort by ID.
func All() []*Type {
	out := make([]*Type, 0, len(Registry))
	for _, t := range Registry {
		out = append(out, t)
	}
	return out
}
