// Package planner implements the Scan Planner of spec.md §4.5: deanonymize
// user constraints per data type, apply scan parameter rules, and pick
// memory alignment, producing an Element Scan Plan.
package planner

import "github.com/memscan/engine/internal/datatype"

// AnonymousConstraint is the user-space scan constraint of spec.md §3:
// (compare_type, optional anonymous value string). Relative/Delta carry no
// immediate other than the delta operand itself.
type AnonymousConstraint struct {
	Compare datatype.CompareType
	Value   string // empty for Relative family
}

// FinalizedConstraint is an AnonymousConstraint resolved against a
// specific data type, with parsed value bytes ready for the comparators.
type FinalizedConstraint struct {
	Compare datatype.CompareType
	Type    *datatype.Type
	Value   datatype.Value // zero Value for constraints with no immediate
}

// Deanonymize parses c.Value (if any) into bytes for t, per spec.md §4.5
// step 1. A parse failure drops the constraint for this type only; other
// types in a multi-type scan proceed independently.
func Deanonymize(c AnonymousConstraint, t *datatype.Type) (FinalizedConstraint, bool) {
	if c.Compare.Family() == datatype.FamilyRelative && !requiresImmediate(c.Compare) {
		return FinalizedConstraint{Compare: c.Compare, Type: t}, true
	}
	val, err := datatype.ParseAnonymous(t, c.Value)
	if err != nil {
		return FinalizedConstraint{}, false
	}
	return FinalizedConstraint{Compare: c.Compare, Type: t, Value: val}, true
}

func requiresImmediate(c datatype.CompareType) bool {
	switch c {
	case datatype.CompareChanged, datatype.CompareUnchanged, datatype.CompareIncreased, datatype.CompareDecreased:
		return false
	default:
		return true
	}
}
