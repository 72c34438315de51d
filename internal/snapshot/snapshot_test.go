package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscan/engine/internal/memquery"
)

type fakeReader struct {
	fail map[uint64]bool
	data map[uint64]byte
}

func (f *fakeReader) ReadBytes(address uint64, buf []byte) bool {
	if f.fail[address] {
		return false
	}
	for i := range buf {
		buf[i] = f.data[address+uint64(i)]
	}
	return true
}

func TestBuildCoalescesAdjacentDescriptors(t *testing.T) {
	descs := []memquery.Descriptor{
		{Region: memquery.Region{Base: 0x1000, Size: 0x1000}},
		{Region: memquery.Region{Base: 0x2000, Size: 0x1000}},
		{Region: memquery.Region{Base: 0x5000, Size: 0x1000}},
	}
	regions := Build(descs)
	require.Len(t, regions, 2)
	assert.Equal(t, uint64(0x1000), regions[0].Base)
	assert.Equal(t, uint64(0x2000), regions[0].Size)
	assert.Equal(t, []uint64{0x2000}, regions[0].PageBoundaries)
	assert.Equal(t, uint64(0x5000), regions[1].Base)
}

func TestReadAllMemorySwapsAndAllocates(t *testing.T) {
	r, err := NewRegion(0x1000, 8, nil)
	require.NoError(t, err)
	reader := &fakeReader{data: map[uint64]byte{0x1000: 1, 0x1001: 2}}

	err = ReadAllMemory(r, reader)
	require.NoError(t, err)
	assert.Equal(t, byte(1), r.CurrentValues[0])
	assert.Len(t, r.PreviousValues, 0)

	reader.data[0x1000] = 9
	err = ReadAllMemory(r, reader)
	require.NoError(t, err)
	assert.Equal(t, byte(9), r.CurrentValues[0])
	assert.Equal(t, byte(1), r.PreviousValues[0])
}

func TestReadAllMemoryPartialFailureIsOk(t *testing.T) {
	r, err := NewRegion(0x1000, 0x2000, []uint64{0x2000})
	require.NoError(t, err)
	reader := &fakeReader{fail: map[uint64]bool{0x2000: true}, data: map[uint64]byte{}}

	err = ReadAllMemory(r, reader)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0x2000}, r.PageBoundaryTombstones)
	assert.Equal(t, uint64(len(r.CurrentValues)), r.Size)
}

func TestReadAllMemoryAllSlicesFail(t *testing.T) {
	r, err := NewRegion(0x1000, 8, nil)
	require.NoError(t, err)
	reader := &fakeReader{fail: map[uint64]bool{0x1000: true}}
	err = ReadAllMemory(r, reader)
	assert.Error(t, err)
}

func TestSnapshotTakePutRegionsRoundTrip(t *testing.T) {
	s := New()
	r, _ := NewRegion(0x1000, 8, nil)
	s.SetRegions([]*Region{r})
	assert.False(t, s.IsEmpty())

	taken := s.TakeRegions()
	assert.True(t, s.IsEmpty())
	require.Len(t, taken, 1)

	s.PutRegions(taken)
	assert.False(t, s.IsEmpty())
}

func TestSetFiltersDropsZeroSize(t *testing.T) {
	r, _ := NewRegion(0x1000, 16, nil)
	r.SetFilters("i32", []Filter{{Base: 0x1000, Size: 4}, {Base: 0x1008, Size: 0}})
	assert.Equal(t, 1, r.FilterCount("i32"))
}
