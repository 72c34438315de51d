package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/settings"
)

func TestPlanDeduplicatesAndPicksTypeAlignment(t *testing.T) {
	u32 := datatype.Lookup(datatype.U32)
	require.NotNil(t, u32)

	constraints := []AnonymousConstraint{
		{Compare: datatype.CompareEqual, Value: "0"},
		{Compare: datatype.CompareEqual, Value: "0"},
	}

	plan, err := Plan(constraints, []*datatype.Type{u32}, settings.DefaultScanSettings())
	require.NoError(t, err)
	require.Len(t, plan.TypePlans, 1)
	assert.Len(t, plan.TypePlans[0].Constraints, 1)
	assert.Equal(t, settings.MemoryAlignment(4), plan.Alignment)
}

func TestPlanRejectsAllUnparsableConstraints(t *testing.T) {
	u32 := datatype.Lookup(datatype.U32)
	constraints := []AnonymousConstraint{{Compare: datatype.CompareEqual, Value: "not-a-number"}}

	_, err := Plan(constraints, []*datatype.Type{u32}, settings.DefaultScanSettings())
	assert.Error(t, err)
}

func TestChooseAlignmentExplicitSettingWins(t *testing.T) {
	s := settings.DefaultScanSettings()
	a := settings.MemoryAlignment(8)
	s.MemoryAlignment = &a

	assert.Equal(t, settings.MemoryAlignment(8), chooseAlignment(s, -1))
}

func TestChooseAlignmentFastScanLastDigitsFallsBackTo16(t *testing.T) {
	s := settings.DefaultScanSettings()
	s.FastScanEnabled = true
	digits := uint8(2)
	s.FastScanLastDigits = &digits

	assert.Equal(t, settings.MemoryAlignment(16), chooseAlignment(s, -1))
}

func TestChooseAlignmentDisagreementFallsBackToOne(t *testing.T) {
	s := settings.DefaultScanSettings()
	s.FastScanEnabled = false
	assert.Equal(t, settings.MemoryAlignment(1), chooseAlignment(s, -1))
}

// TestChooseAlignmentHonorsFastScanLastDigitsClamp guards against a
// FastScanLastDigits value above settings.MaxFastScanLastDigits reaching
// the planner unclamped; it must still take the fast-scan-alignment path,
// per spec.md §6's "clamped to <=15".
func TestChooseAlignmentHonorsFastScanLastDigitsClamp(t *testing.T) {
	s := settings.DefaultScanSettings()
	s.FastScanEnabled = true
	digits := uint8(200)
	s.FastScanLastDigits = &digits

	assert.Equal(t, settings.MemoryAlignment(16), chooseAlignment(s, -1))
}
