package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscan/engine/internal/datatype"
	"github.com/memscan/engine/internal/planner"
	"github.com/memscan/engine/internal/settings"
	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

type zeroReader struct{}

func (zeroReader) ReadBytes(address uint64, buf []byte) bool {
	for i := range buf {
		buf[i] = 0
	}
	return true
}

func planFor(t *testing.T, compare datatype.CompareType, value string, typ datatype.ID) *planner.ElementScanPlan {
	t.Helper()
	dt := datatype.Lookup(typ)
	require.NotNil(t, dt)
	plan, err := planner.Plan(
		[]planner.AnonymousConstraint{{Compare: compare, Value: value}},
		[]*datatype.Type{dt},
		settings.DefaultScanSettings(),
	)
	require.NoError(t, err)
	return plan
}

func TestRunElementScanRejectsEmptySnapshot(t *testing.T) {
	e := New(zeroReader{}, 4096, 0)
	snap := snapshot.New()
	plan := planFor(t, datatype.CompareEqual, "0", datatype.I32)

	err := e.RunElementScan(context.Background(), snap, plan, settings.DefaultScanSettings(), nil)
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestRunElementScanCollectsThenNarrowsFilters(t *testing.T) {
	e := New(zeroReader{}, 4096, 0)
	snap := snapshot.New()
	r, err := snapshot.NewRegion(0x1000, 12, nil)
	require.NoError(t, err)
	snap.SetRegions([]*snapshot.Region{r})

	s := settings.DefaultScanSettings()
	plan := planFor(t, datatype.CompareEqual, "0", datatype.I32)
	task := taskregistry.NewTask("element-scan")

	err = e.RunElementScan(context.Background(), snap, plan, s, task)
	require.NoError(t, err)

	regions := snap.Regions()
	require.Len(t, regions, 1)
	fc, ok := regions[0].ScanResults[string(datatype.I32)]
	require.True(t, ok)
	require.Len(t, fc.Filters, 1)
	assert.Equal(t, uint64(0x1000), fc.Filters[0].Base)
	assert.Equal(t, uint64(12), fc.Filters[0].Size)
}

func TestRunElementScanSkipsCollectWhenReadModeIsNotReadBeforeScan(t *testing.T) {
	e := New(zeroReader{}, 4096, 0)
	snap := snapshot.New()
	r, err := snapshot.NewRegion(0x2000, 8, nil)
	require.NoError(t, err)
	snap.SetRegions([]*snapshot.Region{r})

	s := settings.DefaultScanSettings()
	s.MemoryReadMode = settings.ReadInterleavedWithScan
	plan := planFor(t, datatype.CompareEqual, "0", datatype.I32)

	err = e.RunElementScan(context.Background(), snap, plan, s, nil)
	require.NoError(t, err)

	regions := snap.Regions()
	require.Len(t, regions, 1)
	assert.Empty(t, regions[0].CurrentValues, "collector must not have run when mode skips ReadBeforeScan")
}
