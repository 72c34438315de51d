package planner

import "github.com/memscan/engine/internal/datatype"

// Rule is one pure scan-parameter-rewrite pass of spec.md §4.5 step 2:
// "a registry of scan parameter rules... mapping passes that may rewrite
// a constraint — e.g. collapse `==0 AND ==0` into a single clause."
type Rule func([]FinalizedConstraint) []FinalizedConstraint

// DefaultRules is applied in sequence by Plan.
var DefaultRules = []Rule{
	dedupeIdenticalEquality,
}

// dedupeIdenticalEquality collapses repeated identical immediate-equality
// constraints for the same type into one, e.g. "==0 AND ==0" -> "==0".
func dedupeIdenticalEquality(in []FinalizedConstraint) []FinalizedConstraint {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, c := range in {
		if c.Compare != datatype.CompareEqual {
			out = append(out, c)
			continue
		}
		key := string(c.Type.ID) + ":" + string(c.Value.Bytes)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func applyRules(rules []Rule, constraints []FinalizedConstraint) []FinalizedConstraint {
	for _, r := range rules {
		constraints = r(constraints)
	}
	return constraints
}
