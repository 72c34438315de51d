package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscan/engine/internal/snapshot"
	"github.com/memscan/engine/internal/taskregistry"
)

type stubReader struct {
	fail map[uint64]bool
}

func (s *stubReader) ReadBytes(address uint64, buf []byte) bool {
	if s.fail[address] {
		return false
	}
	for i := range buf {
		buf[i] = byte(address + uint64(i))
	}
	return true
}

func TestCollectRefreshesAllRegionsOffLock(t *testing.T) {
	snap := snapshot.New()
	var regions []*snapshot.Region
	for i := 0; i < 40; i++ {
		r, err := snapshot.NewRegion(uint64(i+1)*0x1000, 16, nil)
		require.NoError(t, err)
		regions = append(regions, r)
	}
	snap.SetRegions(regions)

	c := New(&stubReader{}, 4096)
	task := taskregistry.NewTask("value-collect")
	err := c.Collect(context.Background(), snap, task, false)
	require.NoError(t, err)

	assert.False(t, snap.IsEmpty())
	for _, r := range snap.Regions() {
		assert.Len(t, r.CurrentValues, int(r.Size))
	}
	assert.Equal(t, 1.0, task.Progress())
}

func TestCollectDropsUnreadableRegions(t *testing.T) {
	snap := snapshot.New()
	r1, _ := snapshot.NewRegion(0x1000, 16, nil)
	r2, _ := snapshot.NewRegion(0x2000, 16, nil)
	snap.SetRegions([]*snapshot.Region{r1, r2})

	c := New(&stubReader{fail: map[uint64]bool{0x1000: true}}, 4096)
	err := c.Collect(context.Background(), snap, nil, false)
	require.NoError(t, err)

	regions := snap.Regions()
	require.Len(t, regions, 1)
	assert.Equal(t, uint64(0x2000), regions[0].Base)
}

func TestCollectYieldsBetweenUnitsWhenPauseWhileScanningIsSet(t *testing.T) {
	snap := snapshot.New()
	var regions []*snapshot.Region
	for i := 0; i < 3; i++ {
		r, err := snapshot.NewRegion(uint64(i+1)*0x1000, 16, nil)
		require.NoError(t, err)
		regions = append(regions, r)
	}
	snap.SetRegions(regions)

	c := New(&stubReader{}, 4096)
	c.MaxParallel = 1 // serialize so the per-unit yields are additive and measurable

	start := time.Now()
	err := c.Collect(context.Background(), snap, nil, true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 3*pauseYield)
}
