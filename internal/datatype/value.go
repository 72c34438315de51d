package datatype

import "fmt"

// Value is the (DataTypeRef, bytes) pair of spec.md §3. Invariant: for
// fixed-size types len(Bytes) == Type.UnitSize; for variable types
// (string/aob) Bytes may be any length.
type Value struct {
	Type  *Type
	Bytes []byte
}

func NewValue(t *Type, bytes []byte) (Value, error) {
	if !t.Variable && len(bytes) != t.UnitSize {
		return Value{}, fmt.Errorf("datatype: value for %s must be %d bytes, got %d", t.ID, t.UnitSize, len(bytes))
	}
	return Value{Type: t, Bytes: bytes}, nil
}

func (v Value) Format() string {
	if v.Type == nil || v.Type.Format == nil {
		return ""
	}
	return v.Type.Format(v.Bytes)
}

// ParseAnonymous deanonymizes a user value string against t, the first
// half of the planner's "Deanonymize" step in spec.md §4.5.
func ParseAnonymous(t *Type, anonymous string) (Value, error) {
	if t.Parse == nil {
		return Value{}, fmt.Errorf("datatype: %s has no parser", t.ID)
	}
	bytes, err := t.Parse(anonymous)
	if err != nil {
		return Value{}, err
	}
	return NewValue(t, bytes)
}
