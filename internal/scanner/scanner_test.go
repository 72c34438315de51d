package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/planner"
	"github.com/memscan/engine/internal/settings"
	"github.com/memscan/engine/internal/snapshot"
)

func TestRLECoalescesAdjacentRuns(t *testing.T) {
	rle := NewRLE(0x1000)
	rle.Encode(4)
	rle.Encode(4)
	rle.Finalize(4) // gap
	rle.Encode(4)

	got := rle.Result()
	require.Len(t, got, 2)
	assert.Equal(t, Subregion{Base: 0x1000, Size: 8}, got[0])
	assert.Equal(t, Subregion{Base: 0x1000 + 12, Size: 4}, got[1])
}

func TestRLEEmptyRunEmitsNothing(t *testing.T) {
	rle := NewRLE(0x2000)
	rle.Finalize(10)
	assert.Empty(t, rle.Result())
}

// TestEqualZeroU32TwelveByteRegion is the literal scenario from spec.md §8:
// equal-zero u32 on a 12-byte region of zeros, alignment 4, lanes 16 bytes
// expects one emitted filter (base, 12).
func TestEqualZeroU32TwelveByteRegion(t *testing.T) {
	u32 := datatype.Lookup(datatype.U32)
	require.NotNil(t, u32)
	zero, err := datatype.NewValue(u32, make([]byte, 4))
	require.NoError(t, err)

	current := make([]byte, 12)
	subs := ScanFilter(current, nil, 0x5000, u32, datatype.CompareEqual, zero, datatype.Tolerance{}, 4, 16)

	require.Len(t, subs, 1)
	assert.Equal(t, Subregion{Base: 0x5000, Size: 12}, subs[0])
}

// TestEqualZeroU64TwentyByteRegion is spec.md §8's second literal scenario:
// equal-zero u64 on a 20-byte region of zeros, alignment 8, lanes 16 bytes
// expects one emitted filter (base, 16); the trailing 4 bytes cannot hold a
// full u64 and are ignored.
func TestEqualZeroU64TwentyByteRegion(t *testing.T) {
	u64 := datatype.Lookup(datatype.U64)
	require.NotNil(t, u64)
	zero, err := datatype.NewValue(u64, make([]byte, 8))
	require.NoError(t, err)

	current := make([]byte, 20)
	subs := ScanFilter(current, nil, 0x6000, u64, datatype.CompareEqual, zero, datatype.Tolerance{}, 8, 16)

	require.Len(t, subs, 1)
	assert.Equal(t, Subregion{Base: 0x6000, Size: 16}, subs[0])
}

func TestScanFilterSplitsMixedRegion(t *testing.T) {
	u32 := datatype.Lookup(datatype.U32)
	zero, _ := datatype.NewValue(u32, make([]byte, 4))

	current := make([]byte, 32)
	for i := 16; i < 20; i++ {
		current[i] = 0xFF // one non-zero u32 element in the middle
	}
	subs := ScanFilter(current, nil, 0x7000, u32, datatype.CompareEqual, zero, datatype.Tolerance{}, 4, 16)

	require.Len(t, subs, 2)
	assert.Equal(t, Subregion{Base: 0x7000, Size: 16}, subs[0])
	assert.Equal(t, Subregion{Base: 0x7014, Size: 12}, subs[1])
}

func TestDispatcherRunNarrowsRegionFilters(t *testing.T) {
	u32 := datatype.Lookup(datatype.U32)
	require.NotNil(t, u32)

	region, err := snapshot.NewRegion(0x8000, 16, nil)
	require.NoError(t, err)
	region.CurrentValues = make([]byte, 16) // all zero

	snap := snapshot.New()
	snap.SetRegions([]*snapshot.Region{region})

	s := settings.DefaultScanSettings()
	alignment := settings.MemoryAlignment(4)
	s.MemoryAlignment = &alignment

	constraints := []planner.AnonymousConstraint{{Compare: datatype.CompareEqual, Value: "0"}}
	plan, err := planner.Plan(constraints, []*datatype.Type{u32}, s)
	require.NoError(t, err)

	d := New(4)
	require.NoError(t, d.Run(context.Background(), snap, plan, nil))

	regions := snap.Regions()
	require.Len(t, regions, 1)
	assert.Equal(t, 1, regions[0].FilterCount(string(u32.ID)))
}

func TestDispatcherRunYieldsBetweenUnitsWhenPauseWhileScanningIsSet(t *testing.T) {
	u32 := datatype.Lookup(datatype.U32)
	require.NotNil(t, u32)

	var regions []*snapshot.Region
	for i := 0; i < 3; i++ {
		r, err := snapshot.NewRegion(uint64(i+1)*0x1000, 16, nil)
		require.NoError(t, err)
		r.CurrentValues = make([]byte, 16)
		regions = append(regions, r)
	}
	snap := snapshot.New()
	snap.SetRegions(regions)

	s := settings.DefaultScanSettings()
	alignment := settings.MemoryAlignment(4)
	s.MemoryAlignment = &alignment
	s.PauseWhileScanning = true

	constraints := []planner.AnonymousConstraint{{Compare: datatype.CompareEqual, Value: "0"}}
	plan, err := planner.Plan(constraints, []*datatype.Type{u32}, s)
	require.NoError(t, err)
	require.True(t, plan.PauseWhileScanning)

	d := New(1) // serialize so the per-unit yields are additive and measurable

	start := time.Now()
	require.NoError(t, d.Run(context.Background(), snap, plan, nil))
	assert.GreaterOrEqual(t, time.Since(start), 3*pauseYield)
}
