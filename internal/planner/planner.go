package planner

import (
	"fmt"

	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/settings"
)

// TypePlan is the per-data-type slice of an Element Scan Plan: the
// finalized constraints to evaluate for that type.
type TypePlan struct {
	Type        *datatype.Type
	Constraints []FinalizedConstraint
}

// ElementScanPlan is spec.md §3's plan: constraints-per-data-type map plus
// global alignment, float tolerance, read mode, and thread/debug flags.
type ElementScanPlan struct {
	TypePlans          []TypePlan
	Alignment          settings.MemoryAlignment
	Tolerance          datatype.Tolerance
	ReadMode           settings.MemoryReadMode
	SingleThread       bool
	DebugValidate      bool
	PauseWhileScanning bool
}

// Plan builds an ElementScanPlan from the user's anonymous constraints, a
// list of candidate data types, and the process-wide scan settings, per
// spec.md §4.5 steps 1-3.
func Plan(constraints []AnonymousConstraint, types []*datatype.Type, s settings.ScanSettings) (*ElementScanPlan, error) {
	var typePlans []TypePlan
	var agreedUnitSize = -2 // -2 = unset, -1 = disagreement

	for _, t := range types {
		var finalized []FinalizedConstraint
		for _, c := range constraints {
			fc, ok := Deanonymize(c, t)
			if !ok {
				continue
			}
			finalized = append(finalized, fc)
		}
		finalized = applyRules(DefaultRules, finalized)
		if len(finalized) == 0 {
			continue
		}
		typePlans = append(typePlans, TypePlan{Type: t, Constraints: finalized})

		if !t.Variable {
			if agreedUnitSize == -2 {
				agreedUnitSize = t.UnitSize
			} else if agreedUnitSize != t.UnitSize {
				agreedUnitSize = -1
			}
		} else {
			agreedUnitSize = -1
		}
	}

	if len(typePlans) == 0 {
		return nil, fmt.Errorf("planner: no valid scan constraints")
	}

	alignment := chooseAlignment(s, agreedUnitSize)

	return &ElementScanPlan{
		TypePlans:          typePlans,
		Alignment:          alignment,
		Tolerance:          datatype.Tolerance{Absolute: s.FloatingPointTolerance.Value},
		ReadMode:           s.MemoryReadMode,
		SingleThread:       s.IsSingleThreadedScan,
		DebugValidate:      s.DebugPerformValidation,
		PauseWhileScanning: s.PauseWhileScanning,
	}, nil
}

// chooseAlignment implements spec.md §4.5 step 3: explicit settings
// override, else fast-scan alignment, else 16 if fast-scan-last-digits is
// set, else the type's unit size if every type agrees, else 1.
func chooseAlignment(s settings.ScanSettings, agreedUnitSize int) settings.MemoryAlignment {
	if s.MemoryAlignment != nil && (*s.MemoryAlignment).Valid() {
		return *s.MemoryAlignment
	}
	if s.FastScanEnabled && s.FastScanAlignment != nil && (*s.FastScanAlignment).Valid() {
		return *s.FastScanAlignment
	}
	if s.FastScanEnabled && settings.ClampFastScanLastDigits(s.FastScanLastDigits) != nil {
		return 16
	}
	if agreedUnitSize > 0 {
		if a := settings.MemoryAlignment(agreedUnitSize); a.Valid() {
			return a
		}
	}
	return 1
}
